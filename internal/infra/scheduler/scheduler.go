package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"birthday_notification_bot/internal/app" // For the Notifier interface

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyStarted is returned when Start is called on a scheduler that is
// already running. The scheduler is owned by main and started exactly once
// per process lifetime.
var ErrAlreadyStarted = fmt.Errorf("notifier scheduler already started")

const cycleTimeout = 5 * time.Minute

// NotifierScheduler drives the notifier at a fixed interval. A cycle that
// fails is logged and abandoned; the loop itself keeps running for the
// lifetime of the process.
type NotifierScheduler struct {
	cronEngine *cron.Cron
	notifier   app.Notifier
	logger     *logrus.Entry
	interval   time.Duration

	mu      sync.Mutex // guards started
	started bool
}

func NewNotifierScheduler(notifier app.Notifier, logger *logrus.Entry, interval time.Duration) *NotifierScheduler {
	return &NotifierScheduler{
		// Overlap is not allowed: a tick that fires while the previous cycle
		// is still running is skipped, so cycles never run concurrently.
		cronEngine: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.PrintfLogger(logger)),
		)),
		notifier: notifier,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the periodic evaluation. Calling it a second time is an error
// rather than a second loop.
func (s *NotifierScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.cronEngine.Schedule(cron.Every(s.interval), cron.FuncJob(s.runOnce))
	s.cronEngine.Start()
	s.logger.WithField("interval", s.interval.String()).Info("Notifier scheduler started")
	return nil
}

// runOnce executes one evaluation cycle against today's date. Errors abort
// the cycle only; the next tick retries from scratch.
func (s *NotifierScheduler) runOnce() {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	if err := s.notifier.RunCycle(ctx, today); err != nil {
		s.logger.WithError(err).Error("Evaluation cycle aborted, waiting for next tick")
	}
}

func (s *NotifierScheduler) Stop() {
	s.logger.Info("Stopping notifier scheduler...")
	ctx := s.cronEngine.Stop() // Stops scheduling new runs, waits for the running cycle.
	<-ctx.Done()
	s.logger.Info("Notifier scheduler stopped")
}
