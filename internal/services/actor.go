package services

import "github.com/google/uuid"

// Roles carried in access tokens
const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Actor is the caller of a service operation
type Actor struct {
	UserID  uuid.UUID
	Roles   []string
	Channel string
}

// HasRole reports whether the actor carries role
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff reports whether the actor acts on behalf of any customer
func (a Actor) IsStaff() bool {
	return a.HasRole(RoleAgent) || a.HasRole(RoleAdmin)
}

// Owns reports whether a booking belongs to the actor
func (a Actor) Owns(customerID *uuid.UUID) bool {
	return customerID != nil && a.UserID != uuid.Nil && *customerID == a.UserID
}
