package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TripStatus represents the lifecycle status of a trip instance
type TripStatus string

const (
	TripStatusScheduled TripStatus = "scheduled"
	TripStatusBoarding  TripStatus = "boarding"
	TripStatusDeparted  TripStatus = "departed"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

var tripTransitions = map[TripStatus][]TripStatus{
	TripStatusScheduled: {TripStatusBoarding, TripStatusCancelled},
	TripStatusBoarding:  {TripStatusDeparted, TripStatusCancelled},
	TripStatusDeparted:  {TripStatusCompleted},
}

// CanTransitionTo checks the lifecycle SCHEDULED -> BOARDING -> DEPARTED -> COMPLETED,
// with CANCELLED reachable from any pre-departure state
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	for _, allowed := range tripTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsOpen reports whether trips in this status are offered and bookable
func (s TripStatus) IsOpen() bool {
	return s == TripStatusScheduled || s == TripStatusBoarding
}

// IsValid checks the status against the known values
func (s TripStatus) IsValid() bool {
	switch s {
	case TripStatusScheduled, TripStatusBoarding, TripStatusDeparted, TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// OpenTripStatuses lists the statuses returned by search
var OpenTripStatuses = []string{string(TripStatusScheduled), string(TripStatusBoarding)}

// Trip is a persisted trip row
type Trip struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	ScheduleTemplateID *string    `json:"schedule_template_id,omitempty" db:"schedule_template_id"`
	Origin             string     `json:"origin" db:"origin"`
	Destination        string     `json:"destination" db:"destination"`
	BusID              string     `json:"bus_id" db:"bus_id"`
	DepartureAt        time.Time  `json:"departure_at" db:"departure_at"`
	ArrivalAt          time.Time  `json:"arrival_at" db:"arrival_at"`
	Fare               float64    `json:"fare" db:"fare"`
	Status             TripStatus `json:"status" db:"status"`
	TotalSeats         int        `json:"total_seats" db:"total_seats"`
	AvailableSeats     int        `json:"available_seats" db:"available_seats"`
	CancellationReason *string    `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Instance converts the row into its persisted TripInstance form
func (t *Trip) Instance() TripInstance {
	return TripInstance{
		Provenance:     Persisted{TripID: t.ID},
		TemplateID:     t.ScheduleTemplateID,
		Origin:         t.Origin,
		Destination:    t.Destination,
		BusID:          t.BusID,
		DepartureAt:    t.DepartureAt,
		ArrivalAt:      t.ArrivalAt,
		Fare:           t.Fare,
		Status:         t.Status,
		TotalSeats:     t.TotalSeats,
		AvailableSeats: t.AvailableSeats,
	}
}

// ============================================================================
// PROVENANCE
// ============================================================================

const projectedRefPrefix = "proj_"

// materializedTripNamespace seeds the deterministic ids given to materialized
// projections, so concurrent bookers of one projection converge on one row.
var materializedTripNamespace = uuid.MustParse("6f1c2d0e-8a4b-5c3d-9e7f-0a1b2c3d4e5f")

// TripProvenance is either Projected or Persisted
type TripProvenance interface {
	Ref() string
	isTripProvenance()
}

// Projected identifies a trip computed from a template for a service date
type Projected struct {
	TemplateID  string
	ServiceDate time.Time
}

// Ref returns the synthetic, stable handle proj_<template>_<YYYYMMDD>
func (p Projected) Ref() string {
	return projectedRefPrefix + p.TemplateID + "_" + p.ServiceDate.Format("20060102")
}

// DurableID is the id the projection receives when it is materialized
func (p Projected) DurableID() uuid.UUID {
	return uuid.NewSHA1(materializedTripNamespace, []byte(p.Ref()))
}

func (Projected) isTripProvenance() {}

// Persisted identifies a trip row
type Persisted struct {
	TripID uuid.UUID
}

// Ref returns the trip id
func (p Persisted) Ref() string {
	return p.TripID.String()
}

func (Persisted) isTripProvenance() {}

// ParseTripRef parses a trip handle. The service date of a projected ref is
// returned at midnight UTC; callers relocate it into the service timezone.
func ParseTripRef(ref string) (TripProvenance, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, NewValidationError("trip_ref", "trip reference is required")
	}

	if strings.HasPrefix(ref, projectedRefPrefix) {
		rest := strings.TrimPrefix(ref, projectedRefPrefix)
		idx := strings.LastIndex(rest, "_")
		if idx <= 0 || idx == len(rest)-1 {
			return nil, NewValidationError("trip_ref", "malformed projected trip reference")
		}
		templateID := rest[:idx]
		if _, err := uuid.Parse(templateID); err != nil {
			return nil, NewValidationError("trip_ref", "malformed projected trip reference")
		}
		date, err := time.Parse("20060102", rest[idx+1:])
		if err != nil {
			return nil, NewValidationError("trip_ref", "malformed projected trip date")
		}
		return Projected{TemplateID: templateID, ServiceDate: date}, nil
	}

	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, NewValidationError("trip_ref", "unknown trip reference format")
	}
	return Persisted{TripID: id}, nil
}

// ============================================================================
// TRIP INSTANCE
// ============================================================================

// TripInstance is a single bookable departure, projected or persisted
type TripInstance struct {
	Provenance     TripProvenance
	TemplateID     *string
	Origin         string
	Destination    string
	BusID          string
	DepartureAt    time.Time
	ArrivalAt      time.Time
	Fare           float64
	Status         TripStatus
	TotalSeats     int
	AvailableSeats int
}

// Ref returns the handle clients use for this instance
func (t TripInstance) Ref() string {
	if t.Provenance == nil {
		return ""
	}
	return t.Provenance.Ref()
}

// IsProjected reports whether the instance has no durable row yet
func (t TripInstance) IsProjected() bool {
	_, ok := t.Provenance.(Projected)
	return ok
}

// PersistedID returns the trip id for persisted instances
func (t TripInstance) PersistedID() (uuid.UUID, bool) {
	p, ok := t.Provenance.(Persisted)
	if !ok {
		return uuid.Nil, false
	}
	return p.TripID, true
}

// SlotKey is the departure timestamp at minute resolution
func (t TripInstance) SlotKey() int64 {
	return t.DepartureAt.Unix() / 60
}

// Materialize converts a projected instance into the row that will persist it
func (t TripInstance) Materialize() (*Trip, error) {
	projected, ok := t.Provenance.(Projected)
	if !ok {
		return nil, fmt.Errorf("trip %s is already persisted", t.Ref())
	}

	templateID := projected.TemplateID
	return &Trip{
		ID:                 projected.DurableID(),
		ScheduleTemplateID: &templateID,
		Origin:             t.Origin,
		Destination:        t.Destination,
		BusID:              t.BusID,
		DepartureAt:        t.DepartureAt.Truncate(time.Minute),
		ArrivalAt:          t.ArrivalAt,
		Fare:               t.Fare,
		Status:             TripStatusScheduled,
		TotalSeats:         t.TotalSeats,
		AvailableSeats:     t.TotalSeats,
	}, nil
}

// MarshalJSON flattens the provenance into trip_ref, trip_id and is_projected
func (t TripInstance) MarshalJSON() ([]byte, error) {
	var tripID *uuid.UUID
	if id, ok := t.PersistedID(); ok {
		tripID = &id
	}

	return json.Marshal(struct {
		TripRef        string     `json:"trip_ref"`
		TripID         *uuid.UUID `json:"trip_id"`
		IsProjected    bool       `json:"is_projected"`
		TemplateID     *string    `json:"template_id,omitempty"`
		Origin         string     `json:"origin"`
		Destination    string     `json:"destination"`
		BusID          string     `json:"bus_id"`
		DepartureAt    time.Time  `json:"departure_at"`
		ArrivalAt      time.Time  `json:"arrival_at"`
		Fare           float64    `json:"fare"`
		Status         TripStatus `json:"status"`
		TotalSeats     int        `json:"total_seats"`
		AvailableSeats int        `json:"available_seats"`
	}{
		TripRef:        t.Ref(),
		TripID:         tripID,
		IsProjected:    t.IsProjected(),
		TemplateID:     t.TemplateID,
		Origin:         t.Origin,
		Destination:    t.Destination,
		BusID:          t.BusID,
		DepartureAt:    t.DepartureAt,
		ArrivalAt:      t.ArrivalAt,
		Fare:           t.Fare,
		Status:         t.Status,
		TotalSeats:     t.TotalSeats,
		AvailableSeats: t.AvailableSeats,
	})
}

// UpdateTripStatusRequest represents an operator status change
type UpdateTripStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=scheduled boarding departed completed cancelled"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}
