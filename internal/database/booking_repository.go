package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

const activeSeatConstraint = "bookings_active_seat_idx"

// BookingRepository handles booking database operations. Every write that
// changes seat occupancy adjusts trips.available_seats in the same transaction.
// Writers lock the affected trips first, in id order, and only then touch
// their bookings.
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, booking_reference, leg, trip_id, schedule_template_id, origin, destination, bus_id,
	departure_at, arrival_at, seat_number, passenger_name, passenger_phone, passenger_email,
	customer_id, fare, amount_paid, balance, payment_method, booking_status,
	reservation_expires_at, channel, cancellation_reason, confirmed_at, cancelled_at,
	created_at, updated_at`

// releaseSQL cancels the live bookings matching condition and gives their
// seats back to the trips. $1 is the cancellation reason, $2 the current time;
// condition arguments start at $3. Returns the number of seats released.
func releaseSQL(condition string) string {
	return `
		WITH released_bookings AS (
			UPDATE bookings
			SET booking_status = 'cancelled',
			    cancellation_reason = $1,
			    cancelled_at = $2,
			    updated_at = $2
			WHERE booking_status <> 'cancelled' AND ` + condition + `
			RETURNING trip_id
		),
		released AS (
			SELECT trip_id, COUNT(*) AS seats
			FROM released_bookings
			GROUP BY trip_id
		),
		restored AS (
			UPDATE trips t
			SET available_seats = LEAST(t.total_seats, t.available_seats + r.seats),
			    updated_at = $2
			FROM released r
			WHERE t.id = r.trip_id
			RETURNING t.id
		)
		SELECT COALESCE(SUM(seats), 0)::int FROM released`
}

var (
	releaseExpiredOnTripSQL  = releaseSQL(`trip_id = $3 AND booking_status = 'reserved' AND reservation_expires_at < $2`)
	releaseExpiredOnTripsSQL = releaseSQL(`trip_id = ANY($3::uuid[]) AND booking_status = 'reserved' AND reservation_expires_at < $2`)
	releaseReferenceSQL      = releaseSQL(`booking_reference = $3`)
)

// lockReferenceTripsSQL locks the trips an itinerary books seats on
const lockReferenceTripsSQL = `
	SELECT id FROM trips
	WHERE id IN (SELECT trip_id FROM bookings WHERE booking_reference = $1)
	ORDER BY id
	FOR UPDATE`

// lockOverdueTripsSQL locks the trips holding the oldest overdue reservations.
// Trips locked by a booking in progress are skipped; that booking releases
// their expired holds itself.
const lockOverdueTripsSQL = `
	SELECT id FROM trips
	WHERE id IN (
		SELECT trip_id FROM bookings
		WHERE booking_status = 'reserved' AND reservation_expires_at < $1
		ORDER BY reservation_expires_at
		LIMIT $2
	)
	ORDER BY id
	FOR UPDATE SKIP LOCKED`

type queryRower interface {
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

func release(ctx context.Context, q queryRower, query, reason string, now time.Time, arg interface{}) (int, error) {
	var released int
	if err := q.QueryRowxContext(ctx, query, reason, now, arg).Scan(&released); err != nil {
		return 0, fmt.Errorf("failed to release seats: %w", err)
	}
	return released, nil
}

// ============================================================================
// READS
// ============================================================================

// TakenSeats returns the seats of a trip held by confirmed bookings or by
// reservations still inside their hold
func (r *BookingRepository) TakenSeats(ctx context.Context, tripID uuid.UUID, now time.Time) ([]int, error) {
	query := `
		SELECT seat_number
		FROM bookings
		WHERE trip_id = $1
		  AND (booking_status = 'confirmed'
		       OR (booking_status = 'reserved' AND reservation_expires_at >= $2))
		ORDER BY seat_number`

	seats := []int{}
	if err := r.db.SelectContext(ctx, &seats, query, tripID, now); err != nil {
		return nil, fmt.Errorf("failed to load taken seats: %w", err)
	}
	return seats, nil
}

// ReferenceExists reports whether a booking reference was ever issued
func (r *BookingRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM bookings WHERE booking_reference = $1)`, reference)
	if err != nil {
		return false, fmt.Errorf("failed to check booking reference: %w", err)
	}
	return exists, nil
}

// GetByReference returns every booking of an itinerary
func (r *BookingRepository) GetByReference(ctx context.Context, reference string) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE booking_reference = $1
		ORDER BY leg, seat_number`

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, reference); err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	if len(bookings) == 0 {
		return nil, &models.NotFoundError{Resource: "booking", ID: reference}
	}
	return bookings, nil
}

// ============================================================================
// CREATE
// ============================================================================

// CreateItinerary writes every leg of the draft in one transaction. A failure
// on any leg rolls back all of them; a failure after the first leg is reported
// as PartialBookingError.
func (r *BookingRepository) CreateItinerary(ctx context.Context, draft *models.ItineraryDraft, now time.Time) ([]models.Booking, error) {
	var written []models.Booking

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := claimReference(ctx, tx, draft.Reference); err != nil {
			return err
		}

		trips, failed, err := lockLegTrips(ctx, tx, draft.Legs)
		if err != nil {
			return legError(draft.Legs, failed, err)
		}

		for i, leg := range draft.Legs {
			booked, err := bookLeg(ctx, tx, leg, trips[i], now)
			if err != nil {
				return legError(draft.Legs, i, err)
			}
			written = append(written, booked...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return written, nil
}

// claimReference holds reference until the transaction ends and fails with
// ErrReferenceTaken when a committed itinerary already uses it
func claimReference(ctx context.Context, tx *sqlx.Tx, reference string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, reference); err != nil {
		return fmt.Errorf("failed to lock booking reference: %w", err)
	}

	var taken bool
	if err := tx.GetContext(ctx, &taken, `SELECT EXISTS(SELECT 1 FROM bookings WHERE booking_reference = $1)`, reference); err != nil {
		return fmt.Errorf("failed to check booking reference: %w", err)
	}
	if taken {
		return models.ErrReferenceTaken
	}
	return nil
}

// legError reports a failure on any leg after the first as a partial booking
func legError(legs []models.LegDraft, i int, err error) error {
	if i > 0 {
		return &models.PartialBookingError{FailedLeg: legs[i].Leg, Cause: err, RolledBack: true}
	}
	return err
}

// lockLegTrips locks the trip of every leg in trip id order and returns the
// trips by leg index. On failure the index of the failing leg is returned.
func lockLegTrips(ctx context.Context, tx *sqlx.Tx, legs []models.LegDraft) ([]*models.Trip, int, error) {
	order := make([]int, len(legs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lockKey(legs[order[a]].Trip) < lockKey(legs[order[b]].Trip)
	})

	trips := make([]*models.Trip, len(legs))
	for _, i := range order {
		trip, err := lockLegTrip(ctx, tx, legs[i].Trip)
		if err != nil {
			return nil, i, err
		}
		trips[i] = trip
	}
	return trips, 0, nil
}

// lockKey is the id the leg's trip row has, or will have once materialized.
// Lowercase uuid strings sort the way Postgres orders uuids.
func lockKey(instance models.TripInstance) string {
	if id, ok := instance.PersistedID(); ok {
		return id.String()
	}
	if p, ok := instance.Provenance.(models.Projected); ok {
		return p.DurableID().String()
	}
	return instance.Ref()
}

func bookLeg(ctx context.Context, tx *sqlx.Tx, leg models.LegDraft, trip *models.Trip, now time.Time) ([]models.Booking, error) {
	if !trip.Status.IsOpen() {
		return nil, &models.TripUnavailableError{TripRef: leg.Trip.Ref(), Status: trip.Status}
	}

	// Expired holds still occupy their seat in the unique index until released
	if _, err := release(ctx, tx, releaseExpiredOnTripSQL, models.CancelReasonExpired, now, trip.ID); err != nil {
		return nil, err
	}

	requested := len(leg.Bookings)
	var remaining int
	err := tx.GetContext(ctx, &remaining, `
		UPDATE trips
		SET available_seats = available_seats - $2, updated_at = $3
		WHERE id = $1 AND available_seats >= $2
		RETURNING available_seats`,
		trip.ID, requested, now,
	)
	if errors.Is(err, sql.ErrNoRows) {
		var available int
		if getErr := tx.GetContext(ctx, &available, `SELECT available_seats FROM trips WHERE id = $1`, trip.ID); getErr != nil {
			return nil, fmt.Errorf("failed to read available seats: %w", getErr)
		}
		return nil, &models.CapacityError{Kind: models.CapacityInsufficientSeats, Requested: requested, Available: available}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reserve capacity: %w", err)
	}

	booked := make([]models.Booking, 0, requested)
	for _, draft := range leg.Bookings {
		b := *draft
		b.TripID = trip.ID
		if err := insertBooking(ctx, tx, &b); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == activeSeatConstraint {
				return nil, &models.SeatConflictError{TripRef: leg.Trip.Ref(), Seats: []int{b.SeatNumber}}
			}
			return nil, fmt.Errorf("failed to insert booking: %w", err)
		}
		booked = append(booked, b)
	}

	return booked, nil
}

// lockLegTrip returns the leg's trip row locked for update, materializing a
// projected trip first
func lockLegTrip(ctx context.Context, tx *sqlx.Tx, instance models.TripInstance) (*models.Trip, error) {
	if id, ok := instance.PersistedID(); ok {
		var trip models.Trip
		err := tx.GetContext(ctx, &trip, `SELECT `+tripColumns+` FROM trips WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.NotFoundError{Resource: "trip", ID: id.String()}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock trip: %w", err)
		}
		return &trip, nil
	}

	row, err := instance.Materialize()
	if err != nil {
		return nil, err
	}
	trip, _, err := materializeTx(ctx, tx, row, true)
	return trip, err
}

func insertBooking(ctx context.Context, tx *sqlx.Tx, b *models.Booking) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, booking_reference, leg, trip_id, schedule_template_id, origin, destination, bus_id,
			departure_at, arrival_at, seat_number, passenger_name, passenger_phone, passenger_email,
			customer_id, fare, amount_paid, balance, payment_method, booking_status,
			reservation_expires_at, channel, confirmed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)`,
		b.ID, b.BookingReference, b.Leg, b.TripID, b.ScheduleTemplateID, b.Origin, b.Destination, b.BusID,
		b.DepartureAt, b.ArrivalAt, b.SeatNumber, b.PassengerName, b.PassengerPhone, b.PassengerEmail,
		b.CustomerID, b.Fare, b.AmountPaid, b.Balance, b.PaymentMethod, b.Status,
		b.ReservationExpiresAt, b.Channel, b.ConfirmedAt, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

// ============================================================================
// STATE CHANGES
// ============================================================================

// lockReferenceTrips locks the trips of an itinerary ahead of its bookings
func lockReferenceTrips(ctx context.Context, tx *sqlx.Tx, reference string) error {
	var ids []string
	if err := tx.SelectContext(ctx, &ids, lockReferenceTripsSQL, reference); err != nil {
		return fmt.Errorf("failed to lock trips: %w", err)
	}
	return nil
}

// ConfirmItinerary marks every reserved booking of the reference as paid.
// Already confirmed itineraries are returned unchanged. An expired hold is
// released and reported as ReservationExpiredError.
func (r *BookingRepository) ConfirmItinerary(ctx context.Context, reference string, now time.Time) ([]models.Booking, error) {
	var (
		confirmed  []models.Booking
		expiredErr *models.ReservationExpiredError
	)

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockReferenceTrips(ctx, tx, reference); err != nil {
			return err
		}

		var current []models.Booking
		err := tx.SelectContext(ctx, &current, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE booking_reference = $1
			ORDER BY id
			FOR UPDATE`, reference)
		if err != nil {
			return fmt.Errorf("failed to lock bookings: %w", err)
		}
		if len(current) == 0 {
			return &models.NotFoundError{Resource: "booking", ID: reference}
		}

		reserved, done := 0, 0
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
				done++
			case models.BookingStatusCancelled:
				cancelReason = b.CancellationReason
			}
		}

		switch {
		case done == len(current):
			confirmed = current
			return nil
		case expiredAt != nil:
			if _, err := release(ctx, tx, releaseReferenceSQL, models.CancelReasonExpired, now, reference); err != nil {
				return err
			}
			// Commit the release, then report the expiry
			expiredErr = &models.ReservationExpiredError{Reference: reference, ExpiredAt: *expiredAt}
			return nil
		case reserved == 0:
			if cancelReason != nil && *cancelReason == models.CancelReasonExpired {
				return &models.ReservationExpiredError{Reference: reference, ExpiredAt: now}
			}
			return &models.BookingStateError{Reference: reference, Status: models.BookingStatusCancelled, Action: "confirm"}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE bookings
			SET booking_status = 'confirmed',
			    amount_paid = fare,
			    balance = 0,
			    reservation_expires_at = NULL,
			    confirmed_at = $2,
			    updated_at = $2
			WHERE booking_reference = $1 AND booking_status = 'reserved'`,
			reference, now)
		if err != nil {
			return fmt.Errorf("failed to confirm bookings: %w", err)
		}

		return tx.SelectContext(ctx, &confirmed, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE booking_reference = $1
			ORDER BY leg, seat_number`, reference)
	})
	if err != nil {
		return nil, err
	}
	if expiredErr != nil {
		return nil, expiredErr
	}
	return confirmed, nil
}

// CancelItinerary cancels the live bookings of a reference and releases their seats
func (r *BookingRepository) CancelItinerary(ctx context.Context, reference, reason string, now time.Time) ([]models.Booking, error) {
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockReferenceTrips(ctx, tx, reference); err != nil {
			return err
		}

		released, err := release(ctx, tx, releaseReferenceSQL, reason, now, reference)
		if err != nil {
			return err
		}
		if released == 0 {
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM bookings WHERE booking_reference = $1)`, reference); err != nil {
				return fmt.Errorf("failed to check booking reference: %w", err)
			}
			if !exists {
				return &models.NotFoundError{Resource: "booking", ID: reference}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetByReference(ctx, reference)
}

// ExpireOverdue releases the overdue reservations on the trips holding the
// oldest limit of them. Trips locked by a concurrent booking are skipped and
// picked up next round.
func (r *BookingRepository) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	var released int

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var tripIDs []string
		if err := tx.SelectContext(ctx, &tripIDs, lockOverdueTripsSQL, now, limit); err != nil {
			return fmt.Errorf("failed to lock trips with overdue holds: %w", err)
		}
		if len(tripIDs) == 0 {
			return nil
		}

		var err error
		released, err = release(ctx, tx, releaseExpiredOnTripsSQL, models.CancelReasonExpired, now, pq.Array(tripIDs))
		return err
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}
