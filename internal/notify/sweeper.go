package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/timecapsule/timecapsule/internal/metrics"
	"github.com/timecapsule/timecapsule/internal/model"
)

// Sweeper defaults.
const (
	DefaultInterval = time.Minute
	sweepTimeout    = 30 * time.Second
)

// CapsuleLister finds capsules whose open date falls in (from, to].
type CapsuleLister interface {
	ListCapsulesOpenedBetween(ctx context.Context, from, to time.Time) ([]*model.Capsule, error)
}

// EventPublisher delivers unlock events.
type EventPublisher interface {
	Publish(ctx context.Context, event UnlockEvent) (string, error)
}

// Sweeper periodically publishes an event for every capsule that unlocked since
// the previous run. Lock state is still resolved at read time; events are
// notifications only.
type Sweeper struct {
	lister    CapsuleLister
	publisher EventPublisher
	logger    *slog.Logger
	metrics   metrics.Recorder
	interval  time.Duration
	now       func() time.Time

	mu        sync.Mutex // serializes sweeps and guards watermark
	watermark time.Time

	cron    *cron.Cron
	started bool
	startMu sync.Mutex
}

// NewSweeper creates a sweeper whose first window starts now.
func NewSweeper(lister CapsuleLister, publisher EventPublisher, interval time.Duration, logger *slog.Logger, recorder metrics.Recorder) *Sweeper {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Sweeper{
		lister:    lister,
		publisher: publisher,
		logger:    logger.With("component", "notify.sweeper"),
		metrics:   recorder,
		interval:  interval,
		now:       time.Now,
	}
	s.watermark = s.now().UTC()
	return s
}

// Start schedules the sweep. It does not block.
func (s *Sweeper) Start() error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.started {
		return errors.New("sweeper already started")
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	schedule := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	c.Start()
	s.cron = c
	s.started = true

	s.logger.Info("unlock sweeper started", "interval", s.interval)
	return nil
}

// Shutdown stops scheduling and waits for a running sweep to finish.
// It implements server.ShutdownFunc.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	s.startMu.Lock()
	if !s.started {
		s.startMu.Unlock()
		return nil
	}
	c := s.cron
	s.started = false
	s.startMu.Unlock()

	select {
	case <-c.Stop().Done():
		s.logger.Info("unlock sweeper stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("unlock sweeper shutdown timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("unlock sweep failed", "error", err)
	}
}

// RunOnce publishes events for capsules with an open date in (watermark, now]
// and returns how many were published. The watermark only advances when the
// window was listed successfully; individual publish failures are logged and
// counted but not retried.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		s.metrics.ObserveUnlockSweepDuration(time.Since(start))
	}()

	from := s.watermark
	to := s.now().UTC()
	if !to.After(from) {
		return 0, nil
	}

	capsules, err := s.lister.ListCapsulesOpenedBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list unlocked capsules: %w", err)
	}

	published := 0
	for _, c := range capsules {
		// Never announce a capsule that is still locked.
		if c.LockState(to).IsLocked() {
			continue
		}

		event := newUnlockEvent(c.ID, c.OwnerID, c.Title, c.OpenDate)
		streamID, err := s.publisher.Publish(ctx, event)
		if err != nil {
			s.metrics.IncUnlockEventPublished("failed")
			s.logger.Warn("failed to publish unlock event",
				"capsule_id", c.ID,
				"error", err,
			)
			continue
		}

		published++
		s.metrics.IncUnlockEventPublished("success")
		s.logger.Debug("capsule_unlocked",
			"capsule_id", c.ID,
			"owner_id", c.OwnerID,
			"stream_id", streamID,
		)
	}

	s.watermark = to

	if len(capsules) > 0 {
		s.logger.Info("unlock sweep completed",
			"published", published,
			"found", len(capsules),
			"from", from,
			"to", to,
		)
	}

	return published, nil
}
