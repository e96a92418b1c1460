package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidationError represents malformed or missing search/booking input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a field-scoped validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// CapacityKind distinguishes the two capacity failures so the caller knows
// whether to re-prompt for passenger count or for seat choice
type CapacityKind string

const (
	CapacityCountMismatch     CapacityKind = "count_mismatch"
	CapacityInsufficientSeats CapacityKind = "insufficient_seats"
)

// CapacityError is returned when a seat selection does not fit the trip
type CapacityError struct {
	Kind      CapacityKind
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	if e.Kind == CapacityCountMismatch {
		return fmt.Sprintf("selected %d seats but passenger count is %d", e.Available, e.Requested)
	}
	return fmt.Sprintf("trip has %d seats available, %d requested", e.Available, e.Requested)
}

// SeatConflictError is returned when a chosen seat is already held
type SeatConflictError struct {
	TripRef string
	Seats   []int
}

func (e *SeatConflictError) Error() string {
	seats := make([]string, len(e.Seats))
	for i, s := range e.Seats {
		seats[i] = fmt.Sprintf("%d", s)
	}
	if len(seats) == 0 {
		return fmt.Sprintf("a selected seat on trip %s was just taken", e.TripRef)
	}
	return fmt.Sprintf("seat(s) %s on trip %s already taken", strings.Join(seats, ","), e.TripRef)
}

// ReservationExpiredError is returned when an operation touches a reservation past its hold
type ReservationExpiredError struct {
	Reference string
	ExpiredAt time.Time
}

func (e *ReservationExpiredError) Error() string {
	return fmt.Sprintf("reservation %s expired at %s", e.Reference, e.ExpiredAt.Format(time.RFC3339))
}

// InsufficientPointsError is returned when a redemption exceeds the balance
type InsufficientPointsError struct {
	Requested int64
	Available int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: requested %d, available %d", e.Requested, e.Available)
}

// NonPositivePointsError is returned when a redemption asks for zero or fewer points
type NonPositivePointsError struct {
	Requested int64
	Available int64
}

func (e *NonPositivePointsError) Error() string {
	return fmt.Sprintf("points to redeem must be positive, got %d", e.Requested)
}

// PartialBookingError reports a leg failure inside a multi-leg itinerary.
// RolledBack is true when the legs already written were undone.
type PartialBookingError struct {
	FailedLeg  Leg
	Cause      error
	RolledBack bool
}

func (e *PartialBookingError) Error() string {
	return fmt.Sprintf("%s leg failed, itinerary not booked: %v", e.FailedLeg, e.Cause)
}

func (e *PartialBookingError) Unwrap() error {
	return e.Cause
}

// NotFoundError is returned when a referenced record does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// BookingStateError is returned when an itinerary is not in a state that allows the operation
type BookingStateError struct {
	Reference string
	Status    BookingStatus
	Action    string
}

func (e *BookingStateError) Error() string {
	return fmt.Sprintf("cannot %s booking %s in status %s", e.Action, e.Reference, e.Status)
}

// TripUnavailableError is returned when a trip is no longer open for booking
type TripUnavailableError struct {
	TripRef string
	Status  TripStatus
	Reason  string
}

func (e *TripUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("trip %s is not bookable: %s", e.TripRef, e.Reason)
	}
	return fmt.Sprintf("trip %s is not bookable (status: %s)", e.TripRef, e.Status)
}

// ErrReferenceTaken is returned when a new itinerary's reference is already
// used by another itinerary
var ErrReferenceTaken = errors.New("booking reference already in use")
