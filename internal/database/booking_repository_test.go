package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

func legDraft(leg models.Leg, tripID uuid.UUID, seats ...int) models.LegDraft {
	trip := models.Trip{
		ID: tripID, Origin: "Gaborone", Destination: "Maun", BusID: "bus-1",
		DepartureAt: testDeparture, ArrivalAt: testDeparture.Add(6 * time.Hour),
		Fare: 250, Status: models.TripStatusScheduled, TotalSeats: 60, AvailableSeats: 60,
	}
	expires := time.Now().Add(15 * time.Minute)

	draft := models.LegDraft{Leg: leg, Trip: trip.Instance()}
	for _, seat := range seats {
		draft.Bookings = append(draft.Bookings, &models.Booking{
			ID:                   uuid.New(),
			BookingReference:     "KJ-20250609-ABC123",
			Leg:                  leg,
			TripID:               tripID,
			SeatNumber:           seat,
			PassengerName:        "Passenger",
			PassengerPhone:       "+26771234567",
			Fare:                 250,
			Balance:              250,
			PaymentMethod:        models.PaymentMethodOnlineCheckout,
			Status:               models.BookingStatusReserved,
			ReservationExpiresAt: &expires,
			Channel:              "web",
		})
	}
	return draft
}

func TestBookingRepository_TakenSeats(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	tripID := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT seat_number\s+FROM bookings\s+WHERE trip_id = \$1`).
		WithArgs(tripID, now).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow(3).AddRow(12))

	seats, err := repo.TakenSeats(context.Background(), tripID, now)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 12}, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// expectReferenceClaim expects the advisory lock and the existence check
// CreateItinerary runs before touching any trip
func expectReferenceClaim(mock sqlmock.Sqlmock, reference string, taken bool) {
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs(reference).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM bookings WHERE booking_reference = \$1\)`).
		WithArgs(reference).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(taken))
}

func TestBookingRepository_CreateItinerary(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		tripID := uuid.New()
		draft := &models.ItineraryDraft{Reference: "KJ-20250609-ABC123", Legs: []models.LegDraft{legDraft(models.LegOutbound, tripID, 4, 5)}}

		mock.ExpectBegin()
		expectReferenceClaim(mock, draft.Reference, false)
		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).
			WithArgs(tripID).
			WillReturnRows(tripRows(tripID, "scheduled", 60))
		mock.ExpectQuery(`WITH released_bookings AS`).
			WithArgs(models.CancelReasonExpired, now, tripID).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
		mock.ExpectQuery(`UPDATE trips\s+SET available_seats = available_seats - \$2`).
			WithArgs(tripID, 2, now).
			WillReturnRows(sqlmock.NewRows([]string{"available_seats"}).AddRow(58))
		mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		bookings, err := repo.CreateItinerary(ctx, draft, now)
		require.NoError(t, err)
		require.Len(t, bookings, 2)
		assert.Equal(t, tripID, bookings[0].TripID)
		assert.Equal(t, 5, bookings[1].SeatNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Seat Taken Concurrently", func(t *testing.T) {
		tripID := uuid.New()
		draft := &models.ItineraryDraft{Legs: []models.LegDraft{legDraft(models.LegOutbound, tripID, 12)}}

		mock.ExpectBegin()
		expectReferenceClaim(mock, draft.Reference, false)
		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).WillReturnRows(tripRows(tripID, "scheduled", 60))
		mock.ExpectQuery(`WITH released_bookings AS`).WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
		mock.ExpectQuery(`UPDATE trips\s+SET available_seats`).WillReturnRows(sqlmock.NewRows([]string{"available_seats"}).AddRow(59))
		mock.ExpectExec(`INSERT INTO bookings`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: activeSeatConstraint})
		mock.ExpectRollback()

		_, err := repo.CreateItinerary(ctx, draft, now)
		var conflict *models.SeatConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, []int{12}, conflict.Seats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Insufficient Seats", func(t *testing.T) {
		tripID := uuid.New()
		draft := &models.ItineraryDraft{Legs: []models.LegDraft{legDraft(models.LegOutbound, tripID, 1, 2)}}

		mock.ExpectBegin()
		expectReferenceClaim(mock, draft.Reference, false)
		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).WillReturnRows(tripRows(tripID, "scheduled", 1))
		mock.ExpectQuery(`WITH released_bookings AS`).WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
		mock.ExpectQuery(`UPDATE trips\s+SET available_seats`).WillReturnRows(sqlmock.NewRows([]string{"available_seats"}))
		mock.ExpectQuery(`SELECT available_seats FROM trips WHERE id = \$1`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"available_seats"}).AddRow(1))
		mock.ExpectRollback()

		_, err := repo.CreateItinerary(ctx, draft, now)
		var capErr *models.CapacityError
		require.True(t, errors.As(err, &capErr))
		assert.Equal(t, models.CapacityInsufficientSeats, capErr.Kind)
		assert.Equal(t, 1, capErr.Available)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Return Leg Fails", func(t *testing.T) {
		outID := uuid.MustParse("11111111-1111-4111-8111-111111111111")
		backID := uuid.MustParse("22222222-2222-4222-8222-222222222222")
		draft := &models.ItineraryDraft{Legs: []models.LegDraft{
			legDraft(models.LegOutbound, outID, 7),
			legDraft(models.LegReturn, backID, 7),
		}}

		mock.ExpectBegin()
		expectReferenceClaim(mock, draft.Reference, false)
		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).WithArgs(outID).WillReturnRows(tripRows(outID, "scheduled", 60))
		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).WithArgs(backID).WillReturnRows(tripRows(backID, "cancelled", 60))
		mock.ExpectQuery(`WITH released_bookings AS`).WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
		mock.ExpectQuery(`UPDATE trips\s+SET available_seats`).WillReturnRows(sqlmock.NewRows([]string{"available_seats"}).AddRow(59))
		mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		_, err := repo.CreateItinerary(ctx, draft, now)
		var partial *models.PartialBookingError
		require.True(t, errors.As(err, &partial))
		assert.Equal(t, models.LegReturn, partial.FailedLeg)
		assert.True(t, partial.RolledBack)

		var unavailable *models.TripUnavailableError
		assert.True(t, errors.As(err, &unavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Locks Trips In Id Order", func(t *testing.T) {
		// The return trip sorts first, so it is locked before the outbound trip
		outID := uuid.MustParse("bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb")
		backID := uuid.MustParse("aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa")
		draft := &models.ItineraryDraft{Legs: []models.LegDraft{
			legDraft(models.LegOutbound, outID, 3),
			legDraft(models.LegReturn, backID, 3),
		}}

		mock.ExpectBegin()
		expectReferenceClaim(mock, draft.Reference, false)
		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).WithArgs(backID).WillReturnRows(tripRows(backID, "scheduled", 60))
		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).WithArgs(outID).WillReturnRows(tripRows(outID, "scheduled", 60))
		for _, id := range []uuid.UUID{outID, backID} {
			mock.ExpectQuery(`WITH released_bookings AS`).
				WithArgs(models.CancelReasonExpired, now, id).
				WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
			mock.ExpectQuery(`UPDATE trips\s+SET available_seats = available_seats - \$2`).
				WithArgs(id, 1, now).
				WillReturnRows(sqlmock.NewRows([]string{"available_seats"}).AddRow(59))
			mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectCommit()

		bookings, err := repo.CreateItinerary(ctx, draft, now)
		require.NoError(t, err)
		require.Len(t, bookings, 2)
		assert.Equal(t, outID, bookings[0].TripID)
		assert.Equal(t, backID, bookings[1].TripID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Reference Taken", func(t *testing.T) {
		tripID := uuid.New()
		draft := &models.ItineraryDraft{Reference: "KJ-20250609-ABC123", Legs: []models.LegDraft{legDraft(models.LegOutbound, tripID, 4)}}

		mock.ExpectBegin()
		expectReferenceClaim(mock, draft.Reference, true)
		mock.ExpectRollback()

		_, err := repo.CreateItinerary(ctx, draft, now)
		assert.ErrorIs(t, err, models.ErrReferenceTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Locked Return Trip Missing", func(t *testing.T) {
		outID := uuid.MustParse("bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb")
		backID := uuid.MustParse("aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa")
		draft := &models.ItineraryDraft{Legs: []models.LegDraft{
			legDraft(models.LegOutbound, outID, 3),
			legDraft(models.LegReturn, backID, 3),
		}}

		mock.ExpectBegin()
		expectReferenceClaim(mock, draft.Reference, false)
		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).WithArgs(backID).WillReturnRows(sqlmock.NewRows(tripColumnNames))
		mock.ExpectRollback()

		_, err := repo.CreateItinerary(ctx, draft, now)
		var partial *models.PartialBookingError
		require.True(t, errors.As(err, &partial))
		assert.Equal(t, models.LegReturn, partial.FailedLeg)
		var nf *models.NotFoundError
		assert.True(t, errors.As(err, &nf))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_ConfirmItinerary(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	ctx := context.Background()
	now := time.Now()
	tripID := uuid.New()
	reference := "KJ-20250609-ABC123"
	lockTrips := func() {
		mock.ExpectQuery(`SELECT id FROM trips\s+WHERE id IN \(SELECT trip_id FROM bookings WHERE booking_reference = \$1\)\s+ORDER BY id\s+FOR UPDATE`).
			WithArgs(reference).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tripID.String()))
	}

	t.Run("Within Hold", func(t *testing.T) {
		mock.ExpectBegin()
		lockTrips()
		mock.ExpectQuery(`SELECT (.+) FROM bookings\s+WHERE booking_reference = \$1\s+ORDER BY id\s+FOR UPDATE`).
			WithArgs(reference).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), reference, tripID, 4, "reserved", now.Add(5*time.Minute), nil))
		mock.ExpectExec(`UPDATE bookings\s+SET booking_status = 'confirmed'`).
			WithArgs(reference, now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM bookings\s+WHERE booking_reference = \$1\s+ORDER BY leg`).
			WithArgs(reference).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), reference, tripID, 4, "confirmed", nil, nil))
		mock.ExpectCommit()

		bookings, err := repo.ConfirmItinerary(ctx, reference, now)
		require.NoError(t, err)
		require.Len(t, bookings, 1)
		assert.Equal(t, models.BookingStatusConfirmed, bookings[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Hold Expired", func(t *testing.T) {
		expiredAt := now.Add(-time.Minute)
		mock.ExpectBegin()
		lockTrips()
		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), reference, tripID, 4, "reserved", expiredAt, nil))
		mock.ExpectQuery(`WITH released_bookings AS`).
			WithArgs(models.CancelReasonExpired, now, reference).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
		mock.ExpectCommit()

		_, err := repo.ConfirmItinerary(ctx, reference, now)
		var expired *models.ReservationExpiredError
		require.True(t, errors.As(err, &expired))
		assert.True(t, expired.ExpiredAt.Equal(expiredAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Confirmed", func(t *testing.T) {
		mock.ExpectBegin()
		lockTrips()
		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), reference, tripID, 4, "confirmed", nil, nil))
		mock.ExpectCommit()

		bookings, err := repo.ConfirmItinerary(ctx, reference, now)
		require.NoError(t, err)
		assert.Len(t, bookings, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Cancelled By Customer", func(t *testing.T) {
		mock.ExpectBegin()
		lockTrips()
		mock.ExpectQuery(`SELECT (.+) FROM bookings`).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), reference, tripID, 4, "cancelled", nil, models.CancelReasonCustomer))
		mock.ExpectRollback()

		_, err := repo.ConfirmItinerary(ctx, reference, now)
		var stateErr *models.BookingStateError
		require.True(t, errors.As(err, &stateErr))
		assert.Equal(t, "confirm", stateErr.Action)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Reference", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM trips`).WithArgs("KJ-00000000-000000").WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`SELECT (.+) FROM bookings`).WillReturnRows(sqlmock.NewRows(bookingColumnNames))
		mock.ExpectRollback()

		_, err := repo.ConfirmItinerary(ctx, "KJ-00000000-000000", now)
		var nf *models.NotFoundError
		assert.True(t, errors.As(err, &nf))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_CancelItinerary(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	ctx := context.Background()
	now := time.Now()
	tripID := uuid.New()
	reference := "KJ-20250609-ABC123"

	t.Run("Locks Trips Before Bookings", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM trips\s+WHERE id IN \(SELECT trip_id FROM bookings WHERE booking_reference = \$1\)\s+ORDER BY id\s+FOR UPDATE`).
			WithArgs(reference).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tripID.String()))
		mock.ExpectQuery(`WITH released_bookings AS`).
			WithArgs(models.CancelReasonCustomer, now, reference).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT (.+) FROM bookings\s+WHERE booking_reference = \$1`).
			WithArgs(reference).
			WillReturnRows(bookingRow(sqlmock.NewRows(bookingColumnNames), reference, tripID, 4, "cancelled", nil, models.CancelReasonCustomer))

		bookings, err := repo.CancelItinerary(ctx, reference, models.CancelReasonCustomer, now)
		require.NoError(t, err)
		require.Len(t, bookings, 1)
		assert.Equal(t, models.BookingStatusCancelled, bookings[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_ExpireOverdue(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	now := time.Now()
	tripA := "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	tripB := "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"

	t.Run("Locks Trips Then Releases", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM trips\s+WHERE id IN \((.+)LIMIT \$2\s*\)\s+ORDER BY id\s+FOR UPDATE SKIP LOCKED`).
			WithArgs(now, 200).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tripA).AddRow(tripB))
		mock.ExpectQuery(`WITH released_bookings AS (.+) trip_id = ANY\(\$3::uuid\[\]\)`).
			WithArgs(models.CancelReasonExpired, now, pq.Array([]string{tripA, tripB})).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))
		mock.ExpectCommit()

		released, err := repo.ExpireOverdue(context.Background(), now, 200)
		require.NoError(t, err)
		assert.Equal(t, 3, released)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nothing Overdue", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM trips`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectCommit()

		released, err := repo.ExpireOverdue(context.Background(), now, 200)
		require.NoError(t, err)
		assert.Zero(t, released)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM trips`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tripA))
		mock.ExpectQuery(`WITH released_bookings AS`).
			WillReturnError(fmt.Errorf("database error"))
		mock.ExpectRollback()

		_, err := repo.ExpireOverdue(context.Background(), now, 200)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to release seats")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_GetByReferenceNotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM bookings`).
		WithArgs("KJ-20250609-FFFFFF").
		WillReturnRows(sqlmock.NewRows(bookingColumnNames))

	_, err := repo.GetByReference(context.Background(), "KJ-20250609-FFFFFF")
	var nf *models.NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.NoError(t, mock.ExpectationsWereMet())
}
