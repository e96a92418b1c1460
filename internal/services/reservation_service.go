package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/utils"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/pkg/validator"
)

// maxReferenceClaims bounds how many fresh references CreateItinerary draws
// when the store reports the reference taken
const maxReferenceClaims = 3

// BookingStore is the storage of bookings. CreateItinerary writes every leg
// of the draft in one transaction or none of them, and fails with
// models.ErrReferenceTaken when the draft's reference is already in use.
type BookingStore interface {
	SeatLedger
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	CreateItinerary(ctx context.Context, draft *models.ItineraryDraft, now time.Time) ([]models.Booking, error)
	GetByReference(ctx context.Context, reference string) ([]models.Booking, error)
	ConfirmItinerary(ctx context.Context, reference string, now time.Time) ([]models.Booking, error)
	CancelItinerary(ctx context.Context, reference, reason string, now time.Time) ([]models.Booking, error)
	ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

// SeatSelector validates a seat choice against the live state of a trip
type SeatSelector interface {
	ValidateSelection(ctx context.Context, ref string, passengerCount int, seats []int) (models.TripInstance, error)
}

// PointsEarner credits loyalty points for a paid itinerary
type PointsEarner interface {
	EarnForBooking(ctx context.Context, customerID uuid.UUID, reference string, amount float64) (*models.LoyaltyAccount, error)
}

// HoldPolicy maps a payment commitment to its reservation horizon
type HoldPolicy struct {
	CheckoutHold time.Duration // online checkout session
	TerminalHold time.Duration // pay at the terminal before travel
}

// DefaultHoldPolicy returns the default horizons
func DefaultHoldPolicy() HoldPolicy {
	return HoldPolicy{
		CheckoutHold: 15 * time.Minute,
		TerminalHold: 24 * time.Hour,
	}
}

// Horizon returns how long a commitment holds its seats; zero means no expiry
func (p HoldPolicy) Horizon(c models.Commitment) time.Duration {
	switch c {
	case models.CommitmentCheckoutHold:
		return p.CheckoutHold
	case models.CommitmentTerminalHold:
		return p.TerminalHold
	default:
		return 0
	}
}

// ReservationConfig holds configuration for the reservation service
type ReservationConfig struct {
	Holds           HoldPolicy
	ReferencePrefix string
}

// ReservationService books itineraries and moves them through
// reserved -> confirmed | cancelled
type ReservationService struct {
	seats    SeatSelector
	bookings BookingStore
	fares    *FareCalculator
	earner   PointsEarner
	phones   *validator.PhoneValidator
	config   ReservationConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewReservationService creates a new reservation service. earner may be nil.
func NewReservationService(
	seats SeatSelector,
	bookings BookingStore,
	fares *FareCalculator,
	earner PointsEarner,
	config ReservationConfig,
	logger *logrus.Logger,
) *ReservationService {
	return &ReservationService{
		seats:    seats,
		bookings: bookings,
		fares:    fares,
		earner:   earner,
		phones:   validator.NewPhoneValidator(),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// CreateItinerary validates, prices and books a one-way or round-trip
// itinerary. Nothing is written unless every leg can be booked.
func (s *ReservationService) CreateItinerary(ctx context.Context, req *models.CreateItineraryRequest, actor Actor) (*models.ItineraryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if !actor.IsStaff() && actor.UserID != uuid.Nil {
		customerID := actor.UserID
		req.CustomerID = &customerID
	}

	passengers, err := s.normalizePassengers(req.Passengers)
	if err != nil {
		return nil, err
	}

	commitment, ok := req.PaymentMethod.Commitment()
	if !ok {
		return nil, models.NewValidationError("payment_method", "unsupported payment method")
	}

	now := s.now()
	selections := req.Legs()
	trips := make([]models.TripInstance, len(selections))

	for i, sel := range selections {
		trip, err := s.seats.ValidateSelection(ctx, sel.TripRef, req.PassengerCount, sel.Seats)
		if err != nil {
			return nil, err
		}
		if !trip.DepartureAt.After(now) {
			return nil, &models.TripUnavailableError{TripRef: trip.Ref(), Status: trip.Status, Reason: "trip has already departed"}
		}
		trips[i] = trip
	}

	var returnTrip *models.TripInstance
	if len(trips) > 1 {
		returnTrip = &trips[1]
		if !returnTrip.DepartureAt.After(trips[0].DepartureAt) {
			return nil, models.NewValidationError("return.trip_ref", "return trip must depart after the outbound trip")
		}
	}

	quote := s.fares.Quote(trips[0], req.PassengerCount, returnTrip, req.PassengerCount)

	var (
		reference string
		bookings  []models.Booking
	)
	for attempt := 1; ; attempt++ {
		reference, err = utils.GenerateBookingReference(ctx, s.config.ReferencePrefix, now, s.bookings.ReferenceExists)
		if err != nil {
			return nil, err
		}

		draft := &models.ItineraryDraft{Reference: reference}
		legNames := []models.Leg{models.LegOutbound, models.LegReturn}
		for i, sel := range selections {
			draft.Legs = append(draft.Legs, models.LegDraft{
				Leg:      legNames[i],
				Trip:     trips[i],
				Bookings: s.buildLegBookings(reference, legNames[i], trips[i], sel.Seats, passengers, req, commitment, actor, now),
			})
		}

		bookings, err = s.bookings.CreateItinerary(ctx, draft, now)
		if !errors.Is(err, models.ErrReferenceTaken) || attempt == maxReferenceClaims {
			break
		}
		s.logger.WithField("booking_reference", reference).Warn("Booking reference claimed concurrently, drawing another")
	}
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"booking_reference": reference,
			"outbound_trip":     trips[0].Ref(),
			"legs":              len(trips),
		}).WithError(err).Warn("Itinerary booking failed")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_reference": reference,
		"legs":              len(trips),
		"seats":             len(bookings),
		"commitment":        commitment,
		"grand_total":       quote.GrandTotal,
	}).Info("Itinerary booked")

	if commitment == models.CommitmentSettled {
		s.earnPoints(ctx, req.CustomerID, reference, quote.GrandTotal)
	}

	resp := models.NewItineraryResponse(reference, bookings, now)
	resp.Quote = &quote
	return resp, nil
}

func (s *ReservationService) normalizePassengers(passengers []models.PassengerDetails) ([]models.PassengerDetails, error) {
	normalized := make([]models.PassengerDetails, len(passengers))
	for i, p := range passengers {
		phone, err := s.phones.Validate(p.Phone)
		if err != nil {
			return nil, models.NewValidationError(fmt.Sprintf("passengers[%d].phone", i), err.Error())
		}
		p.Phone = phone
		normalized[i] = p
	}
	return normalized, nil
}

// buildLegBookings seats passenger i in seat i of the leg
func (s *ReservationService) buildLegBookings(
	reference string,
	leg models.Leg,
	trip models.TripInstance,
	seats []int,
	passengers []models.PassengerDetails,
	req *models.CreateItineraryRequest,
	commitment models.Commitment,
	actor Actor,
	now time.Time,
) []*models.Booking {
	tripID, _ := trip.PersistedID()
	channel := actor.Channel
	if channel == "" {
		channel = utils.ChannelUnknown
	}

	bookings := make([]*models.Booking, 0, len(seats))
	for i, seat := range seats {
		b := &models.Booking{
			ID:                 uuid.New(),
			BookingReference:   reference,
			Leg:                leg,
			TripID:             tripID,
			ScheduleTemplateID: trip.TemplateID,
			Origin:             trip.Origin,
			Destination:        trip.Destination,
			BusID:              trip.BusID,
			DepartureAt:        trip.DepartureAt,
			ArrivalAt:          trip.ArrivalAt,
			SeatNumber:         seat,
			PassengerName:      passengers[i].Name,
			PassengerPhone:     passengers[i].Phone,
			PassengerEmail:     passengers[i].Email,
			CustomerID:         req.CustomerID,
			Fare:               trip.Fare,
			PaymentMethod:      req.PaymentMethod,
			Channel:            channel,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		if commitment == models.CommitmentSettled {
			confirmedAt := now
			b.Status = models.BookingStatusConfirmed
			b.AmountPaid = trip.Fare
			b.ConfirmedAt = &confirmedAt
		} else {
			expiresAt := now.Add(s.config.Holds.Horizon(commitment))
			b.Status = models.BookingStatusReserved
			b.Balance = trip.Fare
			b.ReservationExpiresAt = &expiresAt
		}

		bookings = append(bookings, b)
	}

	return bookings
}

// ============================================================================
// CONFIRM / CANCEL / LOOKUP
// ============================================================================

// ConfirmPayment marks a reserved itinerary as paid. An itinerary whose hold
// has passed is released and the call fails with ReservationExpiredError.
func (s *ReservationService) ConfirmPayment(ctx context.Context, reference string) (*models.ItineraryResponse, error) {
	now := s.now()

	bookings, err := s.bookings.ConfirmItinerary(ctx, reference, now)
	if err != nil {
		s.logger.WithField("booking_reference", reference).WithError(err).Warn("Payment confirmation rejected")
		return nil, err
	}

	total := 0.0
	var customerID *uuid.UUID
	for _, b := range bookings {
		total += b.Fare
		if b.CustomerID != nil {
			customerID = b.CustomerID
		}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_reference": reference,
		"seats":             len(bookings),
		"amount":            roundToCents(total),
	}).Info("Itinerary confirmed")

	s.earnPoints(ctx, customerID, reference, roundToCents(total))

	return models.NewItineraryResponse(reference, bookings, now), nil
}

// CancelItinerary cancels every live booking of the itinerary and releases its seats
func (s *ReservationService) CancelItinerary(ctx context.Context, reference string, actor Actor) (*models.ItineraryResponse, error) {
	current, err := s.loadOwned(ctx, reference, actor)
	if err != nil {
		return nil, err
	}

	live := false
	for _, b := range current {
		if b.Status != models.BookingStatusCancelled {
			live = true
			break
		}
	}
	if !live {
		return nil, &models.BookingStateError{Reference: reference, Status: models.BookingStatusCancelled, Action: "cancel"}
	}

	reason := models.CancelReasonCustomer
	if actor.IsStaff() {
		reason = models.CancelReasonAgent
	}

	now := s.now()
	bookings, err := s.bookings.CancelItinerary(ctx, reference, reason, now)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_reference": reference,
		"reason":            reason,
	}).Info("Itinerary cancelled")

	return models.NewItineraryResponse(reference, bookings, now), nil
}

// GetItinerary returns the bookings of a reference with their evaluated hold state
func (s *ReservationService) GetItinerary(ctx context.Context, reference string, actor Actor) (*models.ItineraryResponse, error) {
	bookings, err := s.loadOwned(ctx, reference, actor)
	if err != nil {
		return nil, err
	}
	return models.NewItineraryResponse(reference, bookings, s.now()), nil
}

// loadOwned hides itineraries of other customers behind NotFound
func (s *ReservationService) loadOwned(ctx context.Context, reference string, actor Actor) ([]models.Booking, error) {
	bookings, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if actor.IsStaff() {
		return bookings, nil
	}
	for _, b := range bookings {
		if !actor.Owns(b.CustomerID) {
			return nil, &models.NotFoundError{Resource: "booking", ID: reference}
		}
	}
	return bookings, nil
}

// earnPoints is best effort: the booking stands even if the ledger write fails
func (s *ReservationService) earnPoints(ctx context.Context, customerID *uuid.UUID, reference string, amount float64) {
	if s.earner == nil || customerID == nil || amount <= 0 {
		return
	}

	account, err := s.earner.EarnForBooking(ctx, *customerID, reference, amount)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"booking_reference": reference,
			"customer_id":       customerID,
		}).WithError(err).Error("Failed to credit loyalty points")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"booking_reference": reference,
		"total_points":      account.TotalPoints,
		"tier":              account.Tier,
	}).Debug("Loyalty points credited")
}
