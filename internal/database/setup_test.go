package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	return sqlx.NewDb(mockDB, "sqlmock"), mock, func() { mockDB.Close() }
}

var tripColumnNames = []string{
	"id", "schedule_template_id", "origin", "destination", "bus_id", "departure_at", "arrival_at",
	"fare", "status", "total_seats", "available_seats", "cancellation_reason", "created_at", "updated_at",
}

var bookingColumnNames = []string{
	"id", "booking_reference", "leg", "trip_id", "schedule_template_id", "origin", "destination", "bus_id",
	"departure_at", "arrival_at", "seat_number", "passenger_name", "passenger_phone", "passenger_email",
	"customer_id", "fare", "amount_paid", "balance", "payment_method", "booking_status",
	"reservation_expires_at", "channel", "cancellation_reason", "confirmed_at", "cancelled_at",
	"created_at", "updated_at",
}

var testDeparture = time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC)

func tripRows(id uuid.UUID, status string, available int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(tripColumnNames).AddRow(
		id.String(), nil, "Gaborone", "Maun", "bus-1", testDeparture, testDeparture.Add(6*time.Hour),
		250.0, status, 60, available, nil, now, now,
	)
}

func bookingRow(rows *sqlmock.Rows, reference string, tripID uuid.UUID, seat int, status string, expiresAt interface{}, cancelReason interface{}) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(
		uuid.NewString(), reference, "outbound", tripID.String(), nil, "Gaborone", "Maun", "bus-1",
		testDeparture, testDeparture.Add(6*time.Hour), seat, "Passenger", "+26771234567", nil,
		nil, 250.0, 0.0, 250.0, "online_checkout", status,
		expiresAt, "web", cancelReason, nil, nil,
		now, now,
	)
}
