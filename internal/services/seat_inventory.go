package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

const seatsPerRow = 4

// TripResolver turns a trip ref into a bookable instance
type TripResolver interface {
	Resolve(ctx context.Context, ref string) (models.TripInstance, error)
}

// SeatLedger reports the seats held on a persisted trip: confirmed bookings
// plus reserved bookings whose hold has not passed
type SeatLedger interface {
	TakenSeats(ctx context.Context, tripID uuid.UUID, now time.Time) ([]int, error)
}

// ValidateSeatSelection checks a seat choice against a trip snapshot. It is
// advisory: the booking transaction re-checks seat ownership under constraint.
func ValidateSeatSelection(trip models.TripInstance, passengerCount int, seats []int, taken []int) error {
	if passengerCount < 1 {
		return models.NewValidationError("passenger_count", "must be at least 1")
	}

	if len(seats) != passengerCount {
		return &models.CapacityError{
			Kind:      models.CapacityCountMismatch,
			Requested: passengerCount,
			Available: len(seats),
		}
	}

	chosen := make(map[int]struct{}, len(seats))
	for _, seat := range seats {
		if seat < 1 || seat > trip.TotalSeats {
			return models.NewValidationError("seats", fmt.Sprintf("seat %d does not exist on this bus (1-%d)", seat, trip.TotalSeats))
		}
		if _, dup := chosen[seat]; dup {
			return models.NewValidationError("seats", fmt.Sprintf("seat %d selected more than once", seat))
		}
		chosen[seat] = struct{}{}
	}

	if passengerCount > trip.AvailableSeats {
		return &models.CapacityError{
			Kind:      models.CapacityInsufficientSeats,
			Requested: passengerCount,
			Available: trip.AvailableSeats,
		}
	}

	var conflicts []int
	for _, seat := range taken {
		if _, ok := chosen[seat]; ok {
			conflicts = append(conflicts, seat)
		}
	}
	if len(conflicts) > 0 {
		sort.Ints(conflicts)
		return &models.SeatConflictError{TripRef: trip.Ref(), Seats: conflicts}
	}

	return nil
}

// GenerateSeatLayout lays out seats 1..capacity front to back, two either side
// of the aisle. The last row is partial when capacity is not a multiple of four.
func GenerateSeatLayout(capacity int) models.SeatLayout {
	layout := models.SeatLayout{
		TotalSeats:  capacity,
		SeatsPerRow: seatsPerRow,
		Rows:        []models.SeatRow{},
	}

	for seat := 1; seat <= capacity; {
		rowNumber := len(layout.Rows) + 1
		row := models.SeatRow{
			RowNumber:  rowNumber,
			RowLabel:   getRowLabel(rowNumber),
			LeftSeats:  []models.SeatInfo{},
			RightSeats: []models.SeatInfo{},
		}

		for position := 1; position <= seatsPerRow && seat <= capacity; position++ {
			info := models.SeatInfo{
				SeatNumber: seat,
				Label:      fmt.Sprintf("%s%d", row.RowLabel, position),
				IsWindow:   position == 1 || position == seatsPerRow,
				IsAisle:    position == 2 || position == 3,
			}
			if position <= seatsPerRow/2 {
				row.LeftSeats = append(row.LeftSeats, info)
			} else {
				row.RightSeats = append(row.RightSeats, info)
			}
			seat++
		}

		layout.Rows = append(layout.Rows, row)
	}

	return layout
}

// getRowLabel converts row number to alphabetic label (1->A, 2->B, 27->AA)
func getRowLabel(rowNumber int) string {
	if rowNumber <= 0 {
		return "A"
	}
	if rowNumber <= 26 {
		return string(rune('A' + rowNumber - 1))
	}
	first := (rowNumber - 1) / 26
	second := (rowNumber - 1) % 26
	return string(rune('A'+first-1)) + string(rune('A'+second))
}

// ============================================================================
// SERVICE
// ============================================================================

// SeatInventoryService answers seat map and seat selection queries for a trip
type SeatInventoryService struct {
	trips  TripResolver
	ledger SeatLedger
	logger *logrus.Logger
	now    func() time.Time
}

// NewSeatInventoryService creates a new seat inventory service
func NewSeatInventoryService(trips TripResolver, ledger SeatLedger, logger *logrus.Logger) *SeatInventoryService {
	return &SeatInventoryService{
		trips:  trips,
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// takenSeats returns the held seats of the trip; a projection has none. For a
// persisted trip the instance's available seats are recounted from the held
// seats, since the stored counter still includes expired holds until they are
// released.
func (s *SeatInventoryService) takenSeats(ctx context.Context, trip *models.TripInstance) ([]int, error) {
	id, ok := trip.PersistedID()
	if !ok {
		return []int{}, nil
	}
	taken, err := s.ledger.TakenSeats(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load taken seats: %w", err)
	}

	trip.AvailableSeats = trip.TotalSeats - len(taken)
	if trip.AvailableSeats < 0 {
		trip.AvailableSeats = 0
	}
	return taken, nil
}

// GetSeatMap returns the layout of a trip with its held seats marked
func (s *SeatInventoryService) GetSeatMap(ctx context.Context, ref string) (*models.SeatMap, error) {
	trip, err := s.trips.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	taken, err := s.takenSeats(ctx, &trip)
	if err != nil {
		return nil, err
	}

	takenSet := make(map[int]struct{}, len(taken))
	for _, seat := range taken {
		takenSet[seat] = struct{}{}
	}

	layout := GenerateSeatLayout(trip.TotalSeats)
	for r := range layout.Rows {
		markTaken(layout.Rows[r].LeftSeats, takenSet)
		markTaken(layout.Rows[r].RightSeats, takenSet)
	}

	sort.Ints(taken)
	return &models.SeatMap{
		Trip:           trip,
		Layout:         layout,
		TakenSeats:     taken,
		AvailableSeats: trip.AvailableSeats,
	}, nil
}

func markTaken(seats []models.SeatInfo, taken map[int]struct{}) {
	for i := range seats {
		_, seats[i].Taken = taken[seats[i].SeatNumber]
	}
}

// ValidateSelection checks a seat choice against the current state of the trip
func (s *SeatInventoryService) ValidateSelection(ctx context.Context, ref string, passengerCount int, seats []int) (models.TripInstance, error) {
	trip, err := s.trips.Resolve(ctx, ref)
	if err != nil {
		return models.TripInstance{}, err
	}

	if !trip.Status.IsOpen() {
		return trip, &models.TripUnavailableError{TripRef: trip.Ref(), Status: trip.Status}
	}

	taken, err := s.takenSeats(ctx, &trip)
	if err != nil {
		return trip, err
	}

	if err := ValidateSeatSelection(trip, passengerCount, seats, taken); err != nil {
		s.logger.WithFields(logrus.Fields{
			"trip_ref":        trip.Ref(),
			"passenger_count": passengerCount,
			"seats":           seats,
		}).WithError(err).Debug("Seat selection rejected")
		return trip, err
	}

	return trip, nil
}
