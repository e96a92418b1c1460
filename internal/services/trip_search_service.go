package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// TemplateSource is the read side of the schedule templates
type TemplateSource interface {
	ListActive(ctx context.Context) ([]models.ScheduleTemplate, error)
	GetByID(ctx context.Context, id string) (*models.ScheduleTemplate, error)
}

// TripStore is the storage of persisted trips
type TripStore interface {
	// ListForRouteWindow returns every trip of the route departing in [from, to),
	// any status, with available seats counted from the holds live at now
	ListForRouteWindow(ctx context.Context, origin, destination string, from, to, now time.Time) ([]models.Trip, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	// GetBySlot returns nil when no trip occupies the route and departure minute
	GetBySlot(ctx context.Context, origin, destination string, departure time.Time) (*models.Trip, error)
	// MaterializeProjected inserts the row unless its slot is taken and returns the slot's trip
	MaterializeProjected(ctx context.Context, trip *models.Trip) (*models.Trip, bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.TripStatus, reason *string) (*models.Trip, error)
}

// TripSearchService answers availability queries by merging persisted trips
// with projections of the active schedule templates
type TripSearchService struct {
	templates TemplateSource
	trips     TripStore
	location  *time.Location
	logger    *logrus.Logger
	now       func() time.Time
}

// NewTripSearchService creates a new trip search service. loc is the calendar
// search dates and template departure times are read in.
func NewTripSearchService(templates TemplateSource, trips TripStore, loc *time.Location, logger *logrus.Logger) *TripSearchService {
	if loc == nil {
		loc = time.UTC
	}
	return &TripSearchService{
		templates: templates,
		trips:     trips,
		location:  loc,
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================================
// SEARCH
// ============================================================================

// Search returns the bookable trips for the requested date and, for round
// trips, the return date on the reversed route
func (s *TripSearchService) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	startTime := time.Now()

	day, returnDay, err := s.validateSearch(req)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"origin":          req.Origin,
		"destination":     req.Destination,
		"date":            req.Date,
		"return_date":     req.ReturnDate,
		"passenger_count": req.PassengerCount,
	}).Info("Processing trip search")

	var outbound, inbound []models.TripInstance
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var legErr error
		outbound, legErr = s.searchLeg(gctx, req.Origin, req.Destination, day, req.PassengerCount)
		return legErr
	})

	if returnDay != nil {
		g.Go(func() error {
			var legErr error
			inbound, legErr = s.searchLeg(gctx, req.Destination, req.Origin, *returnDay, req.PassengerCount)
			return legErr
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.WithError(err).Error("Trip search failed")
		return nil, err
	}

	response := &models.SearchResponse{
		Status: "success",
		SearchDetails: models.SearchDetails{
			Origin:         strings.TrimSpace(req.Origin),
			Destination:    strings.TrimSpace(req.Destination),
			Date:           day.Format("2006-01-02"),
			PassengerCount: req.PassengerCount,
			Timezone:       s.location.String(),
		},
		Outbound:     outbound,
		SearchTimeMs: time.Since(startTime).Milliseconds(),
	}
	if returnDay != nil {
		returnDate := returnDay.Format("2006-01-02")
		response.SearchDetails.ReturnDate = &returnDate
		response.Return = inbound
	}

	s.logger.WithFields(logrus.Fields{
		"outbound_count": len(outbound),
		"return_count":   len(inbound),
		"search_time_ms": response.SearchTimeMs,
	}).Info("Trip search completed")

	return response, nil
}

// validateSearch checks the request and returns the search days in the service calendar
func (s *TripSearchService) validateSearch(req *models.SearchRequest) (time.Time, *time.Time, error) {
	if err := models.ValidateStruct(req); err != nil {
		return time.Time{}, nil, err
	}

	if strings.EqualFold(strings.TrimSpace(req.Origin), strings.TrimSpace(req.Destination)) {
		return time.Time{}, nil, models.NewValidationError("destination", "must differ from origin")
	}

	day, err := time.ParseInLocation("2006-01-02", req.Date, s.location)
	if err != nil {
		return time.Time{}, nil, models.NewValidationError("date", "must match the format 2006-01-02")
	}

	today := s.today()
	if day.Before(today) {
		return time.Time{}, nil, models.NewValidationError("date", "cannot search for a date in the past")
	}

	if req.TripType == models.TripTypeRoundTrip && req.ReturnDate == nil {
		return time.Time{}, nil, models.NewValidationError("return_date", "is required for round trips")
	}
	if req.TripType == models.TripTypeOneWay && req.ReturnDate != nil {
		return time.Time{}, nil, models.NewValidationError("return_date", "must be omitted for one-way trips")
	}

	if req.ReturnDate == nil {
		return day, nil, nil
	}

	returnDay, err := time.ParseInLocation("2006-01-02", *req.ReturnDate, s.location)
	if err != nil {
		return time.Time{}, nil, models.NewValidationError("return_date", "must match the format 2006-01-02")
	}
	if returnDay.Before(day) {
		return time.Time{}, nil, models.NewValidationError("return_date", "cannot be before the departure date")
	}

	return day, &returnDay, nil
}

func (s *TripSearchService) today() time.Time {
	now := s.now().In(s.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
}

// searchLeg merges persisted and projected trips of one route and day, then
// keeps the ones the party can still board
func (s *TripSearchService) searchLeg(ctx context.Context, origin, destination string, day time.Time, passengers int) ([]models.TripInstance, error) {
	from := day
	to := day.AddDate(0, 0, 1)

	now := s.now()
	rows, err := s.trips.ListForRouteWindow(ctx, strings.TrimSpace(origin), strings.TrimSpace(destination), from, to, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load trips: %w", err)
	}

	templates, err := s.templates.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule templates: %w", err)
	}

	persisted := make([]models.TripInstance, 0, len(rows))
	for i := range rows {
		persisted = append(persisted, rows[i].Instance())
	}

	projected := ProjectTrips(templates, day, &Route{Origin: origin, Destination: destination})
	merged := ReconcileTrips(persisted, projected)

	bookable := make([]models.TripInstance, 0, len(merged))
	for _, trip := range merged {
		if !trip.Status.IsOpen() || trip.AvailableSeats < passengers {
			continue
		}
		if trip.DepartureAt.Before(now) {
			continue
		}
		bookable = append(bookable, trip)
	}

	return bookable, nil
}

// ============================================================================
// RESOLVE
// ============================================================================

// Resolve returns the current state of a trip ref. A projected ref whose slot
// has since been materialized resolves to the persisted trip.
func (s *TripSearchService) Resolve(ctx context.Context, ref string) (models.TripInstance, error) {
	provenance, err := models.ParseTripRef(ref)
	if err != nil {
		return models.TripInstance{}, err
	}

	switch p := provenance.(type) {
	case models.Persisted:
		trip, err := s.trips.GetByID(ctx, p.TripID)
		if err != nil {
			return models.TripInstance{}, err
		}
		return trip.Instance(), nil

	case models.Projected:
		return s.resolveProjected(ctx, p)
	}

	return models.TripInstance{}, models.NewValidationError("trip_ref", "unknown trip reference format")
}

func (s *TripSearchService) resolveProjected(ctx context.Context, p models.Projected) (models.TripInstance, error) {
	tmpl, err := s.templates.GetByID(ctx, p.TemplateID)
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			return models.TripInstance{}, &models.NotFoundError{Resource: "trip", ID: p.Ref()}
		}
		return models.TripInstance{}, err
	}

	if !tmpl.IsActive {
		return models.TripInstance{}, &models.TripUnavailableError{TripRef: p.Ref(), Reason: "schedule is no longer active"}
	}

	day := time.Date(p.ServiceDate.Year(), p.ServiceDate.Month(), p.ServiceDate.Day(), 0, 0, 0, 0, s.location)
	if !tmpl.FiresOn(day) {
		return models.TripInstance{}, &models.NotFoundError{Resource: "trip", ID: p.Ref()}
	}

	departure, err := tmpl.DepartureOn(day)
	if err != nil {
		return models.TripInstance{}, err
	}

	existing, err := s.trips.GetBySlot(ctx, tmpl.Origin, tmpl.Destination, departure.Truncate(time.Minute))
	if err != nil {
		return models.TripInstance{}, fmt.Errorf("failed to look up trip slot: %w", err)
	}
	if existing != nil {
		return existing.Instance(), nil
	}

	projected := ProjectTrips([]models.ScheduleTemplate{*tmpl}, day, nil)
	if len(projected) == 0 {
		return models.TripInstance{}, &models.NotFoundError{Resource: "trip", ID: p.Ref()}
	}
	return projected[0], nil
}

// ============================================================================
// TRIP STATUS
// ============================================================================

// UpdateTripStatus moves a trip along its lifecycle. A projected trip is
// materialized first so the status has a row to live on.
func (s *TripSearchService) UpdateTripStatus(ctx context.Context, ref string, req *models.UpdateTripStatusRequest) (models.TripInstance, error) {
	if err := models.ValidateStruct(req); err != nil {
		return models.TripInstance{}, err
	}
	next := models.TripStatus(req.Status)

	trip, err := s.Resolve(ctx, ref)
	if err != nil {
		return models.TripInstance{}, err
	}

	if !trip.Status.CanTransitionTo(next) {
		return models.TripInstance{}, models.NewValidationError("status",
			fmt.Sprintf("cannot move trip from %s to %s", trip.Status, next))
	}

	id, ok := trip.PersistedID()
	if !ok {
		row, err := trip.Materialize()
		if err != nil {
			return models.TripInstance{}, err
		}
		persisted, _, err := s.trips.MaterializeProjected(ctx, row)
		if err != nil {
			return models.TripInstance{}, fmt.Errorf("failed to materialize trip: %w", err)
		}
		id = persisted.ID
	}

	updated, err := s.trips.UpdateStatus(ctx, id, trip.Status, next, req.Reason)
	if err != nil {
		return models.TripInstance{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id": id,
		"from":    trip.Status,
		"to":      next,
	}).Info("Trip status updated")

	return updated.Instance(), nil
}
