package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the commitment state of a single booking
type BookingStatus string

const (
	BookingStatusReserved  BookingStatus = "reserved"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Leg identifies the direction of a booking within an itinerary
type Leg string

const (
	LegOutbound Leg = "outbound"
	LegReturn   Leg = "return"
)

// TripType is the itinerary shape chosen at search time
type TripType string

const (
	TripTypeOneWay    TripType = "one_way"
	TripTypeRoundTrip TripType = "round_trip"
)

// Cancellation reasons recorded on the booking row
const (
	CancelReasonExpired  = "reservation_expired"
	CancelReasonCustomer = "cancelled_by_customer"
	CancelReasonAgent    = "cancelled_by_agent"
)

// PaymentMethod is the method chosen by the passenger at checkout
type PaymentMethod string

const (
	PaymentMethodCash           PaymentMethod = "cash"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodMobileMoney    PaymentMethod = "mobile_money"
	PaymentMethodOnlineCheckout PaymentMethod = "online_checkout"
	PaymentMethodPayAtTerminal  PaymentMethod = "pay_at_terminal"
)

// Commitment describes how a payment method commits a booking
type Commitment string

const (
	// CommitmentSettled confirms immediately, no expiry
	CommitmentSettled Commitment = "settled"
	// CommitmentCheckoutHold reserves for the short checkout-session window
	CommitmentCheckoutHold Commitment = "checkout_hold"
	// CommitmentTerminalHold reserves for the longer pay-at-terminal grace period
	CommitmentTerminalHold Commitment = "terminal_hold"
)

// Commitment returns the commitment of the method and whether the method is known
func (m PaymentMethod) Commitment() (Commitment, bool) {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobileMoney:
		return CommitmentSettled, true
	case PaymentMethodOnlineCheckout:
		return CommitmentCheckoutHold, true
	case PaymentMethodPayAtTerminal:
		return CommitmentTerminalHold, true
	default:
		return "", false
	}
}

// Booking is one passenger's claim on a seat of a trip. The trip description is
// copied onto the row so the itinerary can be rebuilt without the trip.
type Booking struct {
	ID                   uuid.UUID     `json:"id" db:"id"`
	BookingReference     string        `json:"booking_reference" db:"booking_reference"`
	Leg                  Leg           `json:"leg" db:"leg"`
	TripID               uuid.UUID     `json:"trip_id" db:"trip_id"`
	ScheduleTemplateID   *string       `json:"schedule_template_id,omitempty" db:"schedule_template_id"`
	Origin               string        `json:"origin" db:"origin"`
	Destination          string        `json:"destination" db:"destination"`
	BusID                string        `json:"bus_id" db:"bus_id"`
	DepartureAt          time.Time     `json:"departure_at" db:"departure_at"`
	ArrivalAt            time.Time     `json:"arrival_at" db:"arrival_at"`
	SeatNumber           int           `json:"seat_number" db:"seat_number"`
	PassengerName        string        `json:"passenger_name" db:"passenger_name"`
	PassengerPhone       string        `json:"passenger_phone" db:"passenger_phone"`
	PassengerEmail       *string       `json:"passenger_email,omitempty" db:"passenger_email"`
	CustomerID           *uuid.UUID    `json:"customer_id,omitempty" db:"customer_id"`
	Fare                 float64       `json:"fare" db:"fare"`
	AmountPaid           float64       `json:"amount_paid" db:"amount_paid"`
	Balance              float64       `json:"balance" db:"balance"`
	PaymentMethod        PaymentMethod `json:"payment_method" db:"payment_method"`
	Status               BookingStatus `json:"booking_status" db:"booking_status"`
	ReservationExpiresAt *time.Time    `json:"reservation_expires_at,omitempty" db:"reservation_expires_at"`
	Channel              string        `json:"channel" db:"channel"`
	CancellationReason   *string       `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	ConfirmedAt          *time.Time    `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CancelledAt          *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`
}

// IsExpired is the authoritative expiry check: a reserved booking whose hold
// has passed. Confirmed and cancelled bookings never expire.
func IsExpired(b *Booking, now time.Time) bool {
	if b.Status != BookingStatusReserved || b.ReservationExpiresAt == nil {
		return false
	}
	return now.After(*b.ReservationExpiresAt)
}

// HoldRemaining returns the advisory countdown for a reserved booking
func (b *Booking) HoldRemaining(now time.Time) time.Duration {
	if b.Status != BookingStatusReserved || b.ReservationExpiresAt == nil {
		return 0
	}
	remaining := b.ReservationExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HoldsSeat reports whether the booking still occupies its seat at now
func (b *Booking) HoldsSeat(now time.Time) bool {
	switch b.Status {
	case BookingStatusConfirmed:
		return true
	case BookingStatusReserved:
		return !IsExpired(b, now)
	default:
		return false
	}
}

// ============================================================================
// REQUESTS
// ============================================================================

// PassengerDetails identifies one traveller; passenger i sits in seat i of every leg
type PassengerDetails struct {
	Name  string  `json:"name" validate:"required,min=2,max=120"`
	Phone string  `json:"phone" validate:"required"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

// LegSelection is the trip and seats chosen for one leg
type LegSelection struct {
	TripRef string `json:"trip_ref" validate:"required"`
	Seats   []int  `json:"seats" validate:"dive,gte=1"`
}

// CreateItineraryRequest is the fully assembled itinerary submitted at checkout
type CreateItineraryRequest struct {
	TripType       TripType           `json:"trip_type" validate:"required,oneof=one_way round_trip"`
	PassengerCount int                `json:"passenger_count" validate:"required,min=1,max=10"`
	Outbound       LegSelection       `json:"outbound"`
	Return         *LegSelection      `json:"return,omitempty" validate:"omitempty"`
	Passengers     []PassengerDetails `json:"passengers" validate:"required,min=1,dive"`
	PaymentMethod  PaymentMethod      `json:"payment_method" validate:"required,oneof=cash card mobile_money online_checkout pay_at_terminal"`
	CustomerID     *uuid.UUID         `json:"customer_id,omitempty"`
}

// Validate checks the itinerary shape beyond the struct tags
func (r *CreateItineraryRequest) Validate() error {
	if err := ValidateStruct(r); err != nil {
		return err
	}

	if len(r.Passengers) != r.PassengerCount {
		return NewValidationError("passengers", "one passenger entry is required per seat")
	}

	switch r.TripType {
	case TripTypeRoundTrip:
		if r.Return == nil {
			return NewValidationError("return", "return leg is required for round trips")
		}
	case TripTypeOneWay:
		if r.Return != nil {
			return NewValidationError("return", "one-way itineraries cannot carry a return leg")
		}
	}

	return nil
}

// Legs returns the selections in itinerary order
func (r *CreateItineraryRequest) Legs() []LegSelection {
	legs := []LegSelection{r.Outbound}
	if r.Return != nil {
		legs = append(legs, *r.Return)
	}
	return legs
}

// ============================================================================
// WRITE MODEL
// ============================================================================

// LegDraft holds the bookings of one leg before they are written
type LegDraft struct {
	Leg      Leg
	Trip     TripInstance
	Bookings []*Booking
}

// ItineraryDraft is written as a single unit: every leg or none
type ItineraryDraft struct {
	Reference string
	Legs      []LegDraft
}

// ============================================================================
// RESPONSES
// ============================================================================

// BookingView is a booking with its evaluated hold state
type BookingView struct {
	Booking
	Expired              bool  `json:"expired"`
	HoldSecondsRemaining int64 `json:"hold_seconds_remaining"`
}

// ItineraryResponse is returned for create, confirm, cancel and lookup
type ItineraryResponse struct {
	BookingReference     string        `json:"booking_reference"`
	Status               BookingStatus `json:"status"`
	Quote                *FareQuote    `json:"quote,omitempty"`
	ExpiresAt            *time.Time    `json:"reservation_expires_at,omitempty"`
	HoldSecondsRemaining int64         `json:"hold_seconds_remaining"`
	Bookings             []BookingView `json:"bookings"`
}

// NewItineraryResponse evaluates every booking of a reference against now
func NewItineraryResponse(reference string, bookings []Booking, now time.Time) *ItineraryResponse {
	resp := &ItineraryResponse{
		BookingReference: reference,
		Bookings:         make([]BookingView, 0, len(bookings)),
	}

	reserved, confirmed := 0, 0
	for i := range bookings {
		b := &bookings[i]
		view := BookingView{
			Booking:              *b,
			Expired:              IsExpired(b, now),
			HoldSecondsRemaining: int64(b.HoldRemaining(now).Seconds()),
		}
		resp.Bookings = append(resp.Bookings, view)

		switch {
		case b.Status == BookingStatusConfirmed:
			confirmed++
		case b.Status == BookingStatusReserved && !view.Expired:
			reserved++
			if resp.ExpiresAt == nil || b.ReservationExpiresAt.Before(*resp.ExpiresAt) {
				resp.ExpiresAt = b.ReservationExpiresAt
				resp.HoldSecondsRemaining = view.HoldSecondsRemaining
			}
		}
	}

	switch {
	case len(bookings) > 0 && confirmed == len(bookings):
		resp.Status = BookingStatusConfirmed
	case reserved > 0:
		resp.Status = BookingStatusReserved
	default:
		resp.Status = BookingStatusCancelled
	}

	return resp
}
