package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// maxSweepRounds bounds one cycle so a large backlog cannot starve shutdown
const maxSweepRounds = 50

// ReservationExpiryService releases seats of reservations whose hold has passed.
// Expiry is also enforced lazily wherever a booking changes state; the sweep
// keeps available_seats accurate for search.
type ReservationExpiryService struct {
	bookings  BookingStore
	logger    *logrus.Logger
	interval  time.Duration
	batchSize int
	stopCh    chan struct{}
	stopOnce  sync.Once
	started   bool
	done      chan struct{}
	now       func() time.Time
}

// NewReservationExpiryService creates a new reservation expiry service
func NewReservationExpiryService(
	bookings BookingStore,
	interval time.Duration,
	batchSize int,
	logger *logrus.Logger,
) *ReservationExpiryService {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &ReservationExpiryService{
		bookings:  bookings,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Start begins the background expiry sweep
func (s *ReservationExpiryService) Start() {
	s.logger.WithField("interval", s.interval.String()).Info("Starting reservation expiry sweeper")
	s.started = true
	go s.run()
}

// Stop stops the sweep and waits for the running cycle to finish
func (s *ReservationExpiryService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping reservation expiry sweeper")
		close(s.stopCh)
	})
	if s.started {
		<-s.done
	}
}

func (s *ReservationExpiryService) run() {
	defer close(s.done)

	// Run immediately on start
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.logger.Info("Reservation expiry sweeper stopped")
			return
		}
	}
}

func (s *ReservationExpiryService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.WithError(err).Error("Reservation expiry sweep failed")
	}
}

// RunOnce releases overdue reservations in batches until none remain and
// returns the number of seats released
func (s *ReservationExpiryService) RunOnce(ctx context.Context) (int, error) {
	total := 0
	now := s.now()

	for round := 0; round < maxSweepRounds; round++ {
		released, err := s.bookings.ExpireOverdue(ctx, now, s.batchSize)
		if err != nil {
			return total, err
		}
		total += released
		if released < s.batchSize {
			break
		}
	}

	if total > 0 {
		s.logger.WithField("seats_released", total).Info("Expired reservations released")
	}

	return total, nil
}
