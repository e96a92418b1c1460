package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// MaterializeStats summarises one materialization run
type MaterializeStats struct {
	From      string `json:"from"`
	Days      int    `json:"days"`
	Projected int    `json:"projected"`
	Created   int    `json:"created"`
	Existing  int    `json:"existing"`
	Failed    int    `json:"failed"`
}

// TripMaterializerService persists upcoming projected trips ahead of time so
// operators see real rows. Search and booking never depend on it running.
type TripMaterializerService struct {
	templates TemplateSource
	trips     TripStore
	location  *time.Location
	daysAhead int
	logger    *logrus.Logger
	now       func() time.Time
}

// NewTripMaterializerService creates a new trip materializer service
func NewTripMaterializerService(templates TemplateSource, trips TripStore, loc *time.Location, daysAhead int, logger *logrus.Logger) *TripMaterializerService {
	if loc == nil {
		loc = time.UTC
	}
	if daysAhead <= 0 {
		daysAhead = 7
	}
	return &TripMaterializerService{
		templates: templates,
		trips:     trips,
		location:  loc,
		daysAhead: daysAhead,
		logger:    logger,
		now:       time.Now,
	}
}

// MaterializeUpcoming persists the configured number of days starting today
func (s *TripMaterializerService) MaterializeUpcoming(ctx context.Context) (*MaterializeStats, error) {
	return s.MaterializeAhead(ctx, s.now().In(s.location), s.daysAhead)
}

// MaterializeAhead persists every projected trip departing on the days
// [from, from+days). Trips already persisted for a slot are left untouched,
// so the run can be repeated safely.
func (s *TripMaterializerService) MaterializeAhead(ctx context.Context, from time.Time, days int) (*MaterializeStats, error) {
	if days <= 0 {
		return nil, models.NewValidationError("days", "must be at least 1")
	}

	templates, err := s.templates.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active templates: %w", err)
	}

	from = from.In(s.location)
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, s.location)
	now := s.now()

	stats := &MaterializeStats{From: start.Format("2006-01-02"), Days: days}

	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)

		for _, projected := range ProjectTrips(templates, day, nil) {
			if !projected.DepartureAt.After(now) {
				continue
			}
			stats.Projected++

			row, err := projected.Materialize()
			if err != nil {
				stats.Failed++
				continue
			}

			_, created, err := s.trips.MaterializeProjected(ctx, row)
			if err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				// Log error but continue with other trips
				stats.Failed++
				s.logger.WithFields(logrus.Fields{
					"trip_ref":     projected.Ref(),
					"departure_at": projected.DepartureAt,
				}).WithError(err).Warn("Failed to materialize trip")
				continue
			}

			if created {
				stats.Created++
			} else {
				stats.Existing++
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"from":      stats.From,
		"days":      days,
		"projected": stats.Projected,
		"created":   stats.Created,
		"existing":  stats.Existing,
		"failed":    stats.Failed,
	}).Info("Trip materialization finished")

	return stats, nil
}
