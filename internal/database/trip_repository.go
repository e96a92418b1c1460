package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// TripRepository handles persisted trip database operations
type TripRepository struct {
	db DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db DB) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `
	id, schedule_template_id, origin, destination, bus_id, departure_at, arrival_at,
	fare, status, total_seats, available_seats, cancellation_reason, created_at, updated_at`

// liveTripColumns selects a trip with available_seats counted from the seats
// held at nowParam. A hold past its expiry stops counting even before the
// sweeper cancels it.
func liveTripColumns(nowParam string) string {
	return `
	t.id, t.schedule_template_id, t.origin, t.destination, t.bus_id, t.departure_at, t.arrival_at,
	t.fare, t.status, t.total_seats,
	GREATEST(t.total_seats - (
		SELECT COUNT(*)
		FROM bookings b
		WHERE b.trip_id = t.id
		  AND (b.booking_status = 'confirmed'
		       OR (b.booking_status = 'reserved' AND b.reservation_expires_at >= ` + nowParam + `))
	), 0)::int AS available_seats,
	t.cancellation_reason, t.created_at, t.updated_at`
}

// ListForRouteWindow returns every trip of the route departing in [from, to),
// any status, with availability as of now
func (r *TripRepository) ListForRouteWindow(ctx context.Context, origin, destination string, from, to, now time.Time) ([]models.Trip, error) {
	query := `
		SELECT ` + liveTripColumns("$5") + `
		FROM trips t
		WHERE lower(t.origin) = lower($1)
		  AND lower(t.destination) = lower($2)
		  AND t.departure_at >= $3
		  AND t.departure_at < $4
		ORDER BY t.departure_at`

	var trips []models.Trip
	if err := r.db.SelectContext(ctx, &trips, query, origin, destination, from, to, now); err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return trips, nil
}

// GetByID returns a trip by id
func (r *TripRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	var trip models.Trip
	err := r.db.GetContext(ctx, &trip, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "trip", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// GetBySlot returns the trip occupying a route and departure minute, nil when none
func (r *TripRepository) GetBySlot(ctx context.Context, origin, destination string, departure time.Time) (*models.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE lower(origin) = lower($1)
		  AND lower(destination) = lower($2)
		  AND departure_at = $3`

	var trip models.Trip
	err := r.db.GetContext(ctx, &trip, query, origin, destination, departure.Truncate(time.Minute))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip by slot: %w", err)
	}
	return &trip, nil
}

// MaterializeProjected inserts the row unless its slot is already taken and
// returns whichever trip holds the slot. The bool reports an insert.
func (r *TripRepository) MaterializeProjected(ctx context.Context, trip *models.Trip) (*models.Trip, bool, error) {
	var (
		persisted *models.Trip
		created   bool
	)

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		persisted, created, err = materializeTx(ctx, tx, trip, false)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return persisted, created, nil
}

// materializeTx inserts a projected trip and reads back the slot's row,
// optionally locking it for the rest of the transaction
func materializeTx(ctx context.Context, tx *sqlx.Tx, trip *models.Trip, lock bool) (*models.Trip, bool, error) {
	now := time.Now()
	departure := trip.DepartureAt.Truncate(time.Minute)

	result, err := tx.ExecContext(ctx, `
		INSERT INTO trips (
			id, schedule_template_id, origin, destination, bus_id, departure_at, arrival_at,
			fare, status, total_seats, available_seats, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT DO NOTHING`,
		trip.ID, trip.ScheduleTemplateID, trip.Origin, trip.Destination, trip.BusID,
		departure, trip.ArrivalAt, trip.Fare, trip.Status, trip.TotalSeats, trip.AvailableSeats, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to materialize trip: %w", err)
	}
	inserted, _ := result.RowsAffected()

	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE origin = $1 AND destination = $2 AND departure_at = $3`
	if lock {
		query += ` FOR UPDATE`
	}

	var persisted models.Trip
	if err := tx.GetContext(ctx, &persisted, query, trip.Origin, trip.Destination, departure); err != nil {
		return nil, false, fmt.Errorf("failed to read materialized trip: %w", err)
	}

	return &persisted, inserted == 1, nil
}

// UpdateStatus moves a trip from one status to the next. The transition is
// rejected when the trip changed status in the meantime.
func (r *TripRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.TripStatus, reason *string) (*models.Trip, error) {
	query := `
		UPDATE trips
		SET status = $3,
		    cancellation_reason = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancellation_reason END,
		    updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING ` + tripColumns

	var trip models.Trip
	err := r.db.GetContext(ctx, &trip, query, id, from, to, reason, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &models.TripUnavailableError{
			TripRef: id.String(),
			Status:  current.Status,
			Reason:  "status changed concurrently",
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update trip status: %w", err)
	}
	return &trip, nil
}
