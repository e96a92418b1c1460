package services

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// ============================================================================
// RESOLVER / TEMPLATES
// ============================================================================

type fakeResolver map[string]models.TripInstance

func (f fakeResolver) Resolve(_ context.Context, ref string) (models.TripInstance, error) {
	trip, ok := f[ref]
	if !ok {
		return models.TripInstance{}, &models.NotFoundError{Resource: "trip", ID: ref}
	}
	return trip, nil
}

type fakeTemplateSource struct {
	mu        sync.Mutex
	templates []models.ScheduleTemplate
	listCalls int
}

func (f *fakeTemplateSource) ListActive(_ context.Context) ([]models.ScheduleTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	var active []models.ScheduleTemplate
	for _, t := range f.templates {
		if t.IsActive {
			active = append(active, t)
		}
	}
	return active, nil
}

func (f *fakeTemplateSource) GetByID(_ context.Context, id string) (*models.ScheduleTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.templates {
		if f.templates[i].ID == id {
			tmpl := f.templates[i]
			return &tmpl, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "schedule template", ID: id}
}

// ============================================================================
// TRIPS + BOOKINGS
// ============================================================================

// memoryStore keeps trips and bookings behind one mutex, which stands in for
// the transaction the SQL repositories run
type memoryStore struct {
	mu       sync.Mutex
	trips    map[uuid.UUID]*models.Trip
	bookings []*models.Booking

	// racedReferences makes that many CreateItinerary calls find their
	// reference claimed by a concurrent itinerary
	racedReferences int
	attemptedRefs   []string
}

func newFakeBookingStore() *memoryStore {
	return &memoryStore{trips: make(map[uuid.UUID]*models.Trip)}
}

func (s *memoryStore) addTrip(trip models.Trip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[trip.ID] = &trip
}

func (s *memoryStore) addBooking(b models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = append(s.bookings, &b)
}

func (s *memoryStore) trip(id uuid.UUID) models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.trips[id]
}

func (s *memoryStore) ListForRouteWindow(_ context.Context, origin, destination string, from, to, now time.Time) ([]models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var trips []models.Trip
	for _, t := range s.trips {
		if !strings.EqualFold(t.Origin, origin) || !strings.EqualFold(t.Destination, destination) {
			continue
		}
		if t.DepartureAt.Before(from) || !t.DepartureAt.Before(to) {
			continue
		}
		trip := *t
		held := 0
		for _, b := range s.bookings {
			if b.TripID == t.ID && b.HoldsSeat(now) {
				held++
			}
		}
		trip.AvailableSeats = trip.TotalSeats - held
		if trip.AvailableSeats < 0 {
			trip.AvailableSeats = 0
		}
		trips = append(trips, trip)
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].DepartureAt.Before(trips[j].DepartureAt) })
	return trips, nil
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "trip", ID: id.String()}
	}
	trip := *t
	return &trip, nil
}

func (s *memoryStore) GetBySlot(_ context.Context, origin, destination string, departure time.Time) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.slotLocked(origin, destination, departure); t != nil {
		trip := *t
		return &trip, nil
	}
	return nil, nil
}

func (s *memoryStore) slotLocked(origin, destination string, departure time.Time) *models.Trip {
	for _, t := range s.trips {
		if strings.EqualFold(t.Origin, origin) && strings.EqualFold(t.Destination, destination) &&
			t.DepartureAt.Truncate(time.Minute).Equal(departure.Truncate(time.Minute)) {
			return t
		}
	}
	return nil
}

func (s *memoryStore) MaterializeProjected(_ context.Context, trip *models.Trip) (*models.Trip, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	persisted, created := s.materializeLocked(trip)
	out := *persisted
	return &out, created, nil
}

func (s *memoryStore) materializeLocked(trip *models.Trip) (*models.Trip, bool) {
	if existing := s.slotLocked(trip.Origin, trip.Destination, trip.DepartureAt); existing != nil {
		return existing, false
	}
	row := *trip
	s.trips[row.ID] = &row
	return &row, true
}

func (s *memoryStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.TripStatus, reason *string) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "trip", ID: id.String()}
	}
	if t.Status != from {
		return nil, &models.TripUnavailableError{TripRef: id.String(), Status: t.Status, Reason: "status changed concurrently"}
	}
	t.Status = to
	if to == models.TripStatusCancelled {
		t.CancellationReason = reason
	}
	trip := *t
	return &trip, nil
}

func (s *memoryStore) TakenSeats(_ context.Context, tripID uuid.UUID, now time.Time) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := []int{}
	for _, b := range s.bookings {
		if b.TripID == tripID && b.HoldsSeat(now) {
			taken = append(taken, b.SeatNumber)
		}
	}
	sort.Ints(taken)
	return taken, nil
}

func (s *memoryStore) ReferenceExists(_ context.Context, reference string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.BookingReference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) snapshotLocked() (map[uuid.UUID]models.Trip, []models.Booking) {
	trips := make(map[uuid.UUID]models.Trip, len(s.trips))
	for id, t := range s.trips {
		trips[id] = *t
	}
	bookings := make([]models.Booking, len(s.bookings))
	for i, b := range s.bookings {
		bookings[i] = *b
	}
	return trips, bookings
}

func (s *memoryStore) restoreLocked(trips map[uuid.UUID]models.Trip, bookings []models.Booking) {
	s.trips = make(map[uuid.UUID]*models.Trip, len(trips))
	for id, t := range trips {
		trip := t
		s.trips[id] = &trip
	}
	s.bookings = make([]*models.Booking, len(bookings))
	for i := range bookings {
		b := bookings[i]
		s.bookings[i] = &b
	}
}

func (s *memoryStore) CreateItinerary(_ context.Context, draft *models.ItineraryDraft, now time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attemptedRefs = append(s.attemptedRefs, draft.Reference)
	if s.racedReferences > 0 {
		s.racedReferences--
		return nil, models.ErrReferenceTaken
	}
	for _, b := range s.bookings {
		if b.BookingReference == draft.Reference {
			return nil, models.ErrReferenceTaken
		}
	}

	savedTrips, savedBookings := s.snapshotLocked()
	var written []models.Booking

	for i, leg := range draft.Legs {
		booked, err := s.bookLegLocked(leg, now)
		if err != nil {
			s.restoreLocked(savedTrips, savedBookings)
			if i > 0 {
				return nil, &models.PartialBookingError{FailedLeg: leg.Leg, Cause: err, RolledBack: true}
			}
			return nil, err
		}
		written = append(written, booked...)
	}

	return written, nil
}

func (s *memoryStore) bookLegLocked(leg models.LegDraft, now time.Time) ([]models.Booking, error) {
	var trip *models.Trip
	if id, ok := leg.Trip.PersistedID(); ok {
		trip = s.trips[id]
		if trip == nil {
			return nil, &models.NotFoundError{Resource: "trip", ID: id.String()}
		}
	} else {
		row, err := leg.Trip.Materialize()
		if err != nil {
			return nil, err
		}
		trip, _ = s.materializeLocked(row)
	}

	if !trip.Status.IsOpen() {
		return nil, &models.TripUnavailableError{TripRef: leg.Trip.Ref(), Status: trip.Status}
	}

	s.releaseLocked(func(b *models.Booking) bool { return b.TripID == trip.ID && models.IsExpired(b, now) }, models.CancelReasonExpired, now)

	if trip.AvailableSeats < len(leg.Bookings) {
		return nil, &models.CapacityError{Kind: models.CapacityInsufficientSeats, Requested: len(leg.Bookings), Available: trip.AvailableSeats}
	}

	var booked []models.Booking
	for _, draft := range leg.Bookings {
		for _, existing := range s.bookings {
			if existing.TripID == trip.ID && existing.SeatNumber == draft.SeatNumber && existing.Status != models.BookingStatusCancelled {
				return nil, &models.SeatConflictError{TripRef: leg.Trip.Ref(), Seats: []int{draft.SeatNumber}}
			}
		}
		b := *draft
		b.TripID = trip.ID
		s.bookings = append(s.bookings, &b)
		booked = append(booked, b)
	}
	trip.AvailableSeats -= len(leg.Bookings)

	return booked, nil
}

// releaseLocked cancels matching live bookings and returns their seats
func (s *memoryStore) releaseLocked(match func(*models.Booking) bool, reason string, now time.Time) int {
	released := 0
	for _, b := range s.bookings {
		if b.Status == models.BookingStatusCancelled || !match(b) {
			continue
		}
		r := reason
		cancelledAt := now
		b.Status = models.BookingStatusCancelled
		b.CancellationReason = &r
		b.CancelledAt = &cancelledAt
		if t := s.trips[b.TripID]; t != nil && t.AvailableSeats < t.TotalSeats {
			t.AvailableSeats++
		}
		released++
	}
	return released
}

func (s *memoryStore) byReferenceLocked(reference string) []models.Booking {
	var out []models.Booking
	for _, b := range s.bookings {
		if b.BookingReference == reference {
			out = append(out, *b)
		}
	}
	return out
}

func (s *memoryStore) GetByReference(_ context.Context, reference string) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.byReferenceLocked(reference)
	if len(out) == 0 {
		return nil, &models.NotFoundError{Resource: "booking", ID: reference}
	}
	return out, nil
}

func (s *memoryStore) ConfirmItinerary(_ context.Context, reference string, now time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.byReferenceLocked(reference)
	if len(current) == 0 {
		return nil, &models.NotFoundError{Resource: "booking", ID: reference}
	}

	reserved, confirmed := 0, 0
	var expiredAt *time.Time
	var cancelReason *string
	for i := range current {
		b := &current[i]
		switch b.Status {
		case models.BookingStatusReserved:
			reserved++
			if models.IsExpired(b, now) {
				expiredAt = b.ReservationExpiresAt
			}
		case models.BookingStatusConfirmed:
			confirmed++
		case models.BookingStatusCancelled:
			cancelReason = b.CancellationReason
		}
	}

	switch {
	case confirmed == len(current):
		return current, nil
	case expiredAt != nil:
		s.releaseLocked(func(b *models.Booking) bool { return b.BookingReference == reference }, models.CancelReasonExpired, now)
		return nil, &models.ReservationExpiredError{Reference: reference, ExpiredAt: *expiredAt}
	case reserved == 0:
		if cancelReason != nil && *cancelReason == models.CancelReasonExpired {
			return nil, &models.ReservationExpiredError{Reference: reference, ExpiredAt: now}
		}
		return nil, &models.BookingStateError{Reference: reference, Status: models.BookingStatusCancelled, Action: "confirm"}
	}

	for _, b := range s.bookings {
		if b.BookingReference == reference && b.Status == models.BookingStatusReserved {
			confirmedAt := now
			b.Status = models.BookingStatusConfirmed
			b.AmountPaid = b.Fare
			b.Balance = 0
			b.ReservationExpiresAt = nil
			b.ConfirmedAt = &confirmedAt
		}
	}
	return s.byReferenceLocked(reference), nil
}

func (s *memoryStore) CancelItinerary(_ context.Context, reference, reason string, now time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.byReferenceLocked(reference)) == 0 {
		return nil, &models.NotFoundError{Resource: "booking", ID: reference}
	}
	s.releaseLocked(func(b *models.Booking) bool { return b.BookingReference == reference }, reason, now)
	return s.byReferenceLocked(reference), nil
}

func (s *memoryStore) ExpireOverdue(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := limit
	return s.releaseLocked(func(b *models.Booking) bool {
		if remaining == 0 || !models.IsExpired(b, now) {
			return false
		}
		remaining--
		return true
	}, models.CancelReasonExpired, now), nil
}

// ============================================================================
// LOYALTY
// ============================================================================

type memoryLoyaltyStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.LoyaltyAccount
	ledger   []models.LoyaltyTransaction
}

func newMemoryLoyaltyStore() *memoryLoyaltyStore {
	return &memoryLoyaltyStore{accounts: make(map[uuid.UUID]*models.LoyaltyAccount)}
}

func (s *memoryLoyaltyStore) seed(customerID uuid.UUID, points int64, tier models.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := &models.LoyaltyAccount{ID: uuid.New(), CustomerID: customerID, Tier: tier}
	s.accounts[customerID] = account
	if points > 0 {
		txn := models.LoyaltyTransaction{ID: uuid.New(), AccountID: account.ID, Type: models.LoyaltyTxnAdjust, Points: points}
		s.ledger = append(s.ledger, txn)
		account.TotalPoints = points
	}
}

func (s *memoryLoyaltyStore) ledgerSum(customerID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.accounts[customerID]
	if account == nil {
		return 0
	}
	var sum int64
	for _, txn := range s.ledger {
		if txn.AccountID == account.ID {
			sum += txn.Points
		}
	}
	return sum
}

func (s *memoryLoyaltyStore) GetAccount(_ context.Context, customerID uuid.UUID) (*models.LoyaltyAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[customerID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "loyalty account", ID: customerID.String()}
	}
	out := *account
	return &out, nil
}

func (s *memoryLoyaltyStore) Debit(_ context.Context, debit models.PointsDebit) (*models.LoyaltyAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[debit.CustomerID]
	if !ok {
		return nil, &models.InsufficientPointsError{Requested: debit.Points, Available: 0}
	}

	txn := models.LoyaltyTransaction{
		ID:               debit.TransactionID,
		AccountID:        account.ID,
		Type:             debit.Type,
		Points:           -debit.Points,
		Description:      debit.Description,
		BookingReference: debit.BookingReference,
		CreatedAt:        time.Now(),
	}
	next := *account
	if err := next.Apply(txn, nil); err != nil {
		return nil, err
	}
	*account = next
	s.ledger = append(s.ledger, txn)

	out := *account
	return &out, nil
}

func (s *memoryLoyaltyStore) Credit(_ context.Context, credit models.PointsCredit, tiers models.TierSchedule) (*models.LoyaltyAccount, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[credit.CustomerID]
	if !ok {
		account = &models.LoyaltyAccount{ID: uuid.New(), CustomerID: credit.CustomerID, Tier: tiers.Base()}
		s.accounts[credit.CustomerID] = account
	}

	if credit.Type == models.LoyaltyTxnEarn && credit.BookingReference != nil {
		for _, txn := range s.ledger {
			if txn.AccountID == account.ID && txn.Type == models.LoyaltyTxnEarn &&
				txn.BookingReference != nil && *txn.BookingReference == *credit.BookingReference {
				out := *account
				return &out, false, nil
			}
		}
	}

	txn := models.LoyaltyTransaction{
		ID:               credit.TransactionID,
		AccountID:        account.ID,
		Type:             credit.Type,
		Points:           credit.Points,
		Description:      credit.Description,
		BookingReference: credit.BookingReference,
		CreatedAt:        time.Now(),
	}
	next := *account
	if err := next.Apply(txn, tiers); err != nil {
		return nil, false, err
	}
	*account = next
	s.ledger = append(s.ledger, txn)

	out := *account
	return &out, true, nil
}

func (s *memoryLoyaltyStore) ListTransactions(_ context.Context, customerID uuid.UUID, limit, offset int) ([]models.LoyaltyTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[customerID]
	if !ok {
		return []models.LoyaltyTransaction{}, nil
	}
	var out []models.LoyaltyTransaction
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].AccountID == account.ID {
			out = append(out, s.ledger[i])
		}
	}
	if offset >= len(out) {
		return []models.LoyaltyTransaction{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingEarner struct {
	mu    sync.Mutex
	calls []float64
}

func (r *recordingEarner) EarnForBooking(_ context.Context, customerID uuid.UUID, _ string, amount float64) (*models.LoyaltyAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, amount)
	return &models.LoyaltyAccount{CustomerID: customerID}, nil
}
