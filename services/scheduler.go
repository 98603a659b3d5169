package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ReminderScheduler runs the mileage evaluation once a day at a fixed hour.
type ReminderScheduler struct {
	predictor *MileagePredictor
	hour      int
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewReminderScheduler creates a scheduler that fires daily at hour:00 local time
func NewReminderScheduler(predictor *MileagePredictor, hour int) *ReminderScheduler {
	return &ReminderScheduler{predictor: predictor, hour: hour, now: time.Now}
}

// nextRun returns the first hour:00 strictly after t
func nextRun(t time.Time, hour int) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start launches the background loop. Calling Start twice is a no-op.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx)
	log.WithField("hour", s.hour).Info("Service reminder scheduler started")
}

func (s *ReminderScheduler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		wait := time.Until(nextRun(s.now(), s.hour))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce evaluates all shops immediately
func (s *ReminderScheduler) RunOnce(ctx context.Context) {
	started := s.now()
	results, err := s.predictor.EvaluateAllShops(ctx, started)
	if err != nil {
		log.WithError(err).Error("Service reminder check failed")
		return
	}
	flagged := 0
	for _, predictions := range results {
		flagged += len(predictions)
	}
	log.WithFields(log.Fields{
		"shops":    len(results),
		"flagged":  flagged,
		"duration": time.Since(started).String(),
	}).Info("Service reminder check finished")
}

// Stop ends the loop and waits for an in-flight run to return
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	log.Info("Service reminder scheduler stopped")
}
