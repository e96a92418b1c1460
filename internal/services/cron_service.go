package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron            *cron.Cron
	materializer    *TripMaterializerService
	materializeSpec string
	timeout         time.Duration
	logger          *logrus.Logger
}

// NewCronService creates a new CronService. spec uses the six-field format
// with seconds, e.g. "0 30 1 * * *" for 01:30 every day.
func NewCronService(materializer *TripMaterializerService, spec string, loc *time.Location, logger *logrus.Logger) *CronService {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithSeconds(), cron.WithLocation(loc))

	return &CronService{
		cron:            c,
		materializer:    materializer,
		materializeSpec: spec,
		timeout:         10 * time.Minute,
		logger:          logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	if _, err := s.cron.AddFunc(s.materializeSpec, s.materializeTripsJob); err != nil {
		return fmt.Errorf("failed to schedule trip materialization job: %w", err)
	}
	s.logger.WithField("schedule", s.materializeSpec).Info("Scheduled: materialize upcoming trips")

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops all cron jobs and waits for running ones
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) materializeTripsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	startTime := time.Now()
	stats, err := s.materializer.MaterializeUpcoming(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Trip materialization failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"created":  stats.Created,
		"existing": stats.Existing,
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Trip materialization finished")
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
