// Package summary delivers the periodic classification digest to the
// notification channels on a configurable schedule.
package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/helix-ops/healing-agent/internal/classify"
	"github.com/helix-ops/healing-agent/internal/notify"
)

const checkInterval = 30 * time.Second

// Scheduler fires the daily summary notification. The schedule accepts
// either a Go duration ("24h") or a standard cron expression ("0 9 * * *").
type Scheduler struct {
	schedule string
	gateway  *classify.Gateway
	notifier notify.Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	ticker  *time.Ticker
	anchor  time.Time
	lastRun *time.Time
	wg      sync.WaitGroup
}

// NewScheduler validates the schedule and builds a stopped scheduler.
func NewScheduler(schedule string, gateway *classify.Gateway, notifier notify.Notifier, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := isScheduleDue(schedule, nil, time.Now().UTC(), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("invalid summary schedule %q: %w", schedule, err)
	}
	return &Scheduler{
		schedule: schedule,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger.Named("summary"),
		anchor:   time.Now().UTC(),
	}, nil
}

// Start starts the scheduler loop. It is safe to call Start multiple times.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.ticker = time.NewTicker(checkInterval)
	ticker := s.ticker
	s.mu.Unlock()

	s.logger.Info("summary scheduler started", zap.String("schedule", s.schedule))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-loopCtx.Done():
				return
			case now := <-ticker.C:
				s.runOnce(loopCtx, now.UTC())
			}
		}
	}()
}

// Stop stops background scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// TriggerNow sends the summary immediately, regardless of schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.deliver(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	s.mu.Lock()
	anchor := s.anchor
	lastRun := s.lastRun
	s.mu.Unlock()

	if lastRun != nil {
		anchor = *lastRun
	}
	due, err := isScheduleDue(s.schedule, &anchor, s.anchor, now)
	if err != nil || !due {
		return
	}

	if err := s.deliver(ctx); err != nil {
		s.logger.Warn("summary delivery failed", zap.Error(err))
	}

	s.mu.Lock()
	s.lastRun = &now
	s.mu.Unlock()
}

// deliver sends the current classification stats to the notifier. A nil or
// disabled notifier makes this a no-op.
func (s *Scheduler) deliver(ctx context.Context) error {
	if s.notifier == nil || !s.notifier.Enabled() {
		return nil
	}

	stats := s.gateway.Stats()
	s.logger.Info("sending summary",
		zap.Int64("total_alerts", stats.TotalAlerts),
		zap.Int64("auto_executed", stats.AutoExecuted))
	return s.notifier.Summary(ctx, stats)
}

// isScheduleDue reports whether the schedule has elapsed since the anchor.
// Durations fire on a fixed interval; cron expressions fire at the next
// matching wall-clock time after the anchor.
func isScheduleDue(schedule string, lastRunAt *time.Time, createdAt, now time.Time) (bool, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return false, fmt.Errorf("schedule is required")
	}

	anchor := createdAt.UTC()
	if anchor.IsZero() {
		anchor = now.UTC()
	}
	if lastRunAt != nil {
		anchor = lastRunAt.UTC()
	}

	if interval, err := time.ParseDuration(schedule); err == nil {
		if interval <= 0 {
			return false, fmt.Errorf("interval must be > 0")
		}
		return !anchor.Add(interval).After(now.UTC()), nil
	}

	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return false, err
	}
	next := spec.Next(anchor)
	return !next.After(now.UTC()), nil
}
