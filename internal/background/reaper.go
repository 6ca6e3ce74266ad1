package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IdleEvictor closes client contexts that have been idle too long.
type IdleEvictor interface {
	EvictIdle() int
}

// ContextReaper periodically evicts idle client contexts so their sessions end
// with them.
type ContextReaper struct {
	evictor  IdleEvictor
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewContextReaper creates a new context reaper
func NewContextReaper(evictor IdleEvictor, logger *slog.Logger, interval time.Duration) *ContextReaper {
	return &ContextReaper{
		evictor:  evictor,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the reaper until Stop is called or ctx is cancelled. It blocks.
func (cr *ContextReaper) Start(ctx context.Context) {
	ticker := time.NewTicker(cr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cr.runEviction()
		case <-cr.stopCh:
			cr.logger.Info("context reaper stopped")
			return
		case <-ctx.Done():
			cr.logger.Info("context reaper context cancelled")
			return
		}
	}
}

func (cr *ContextReaper) runEviction() {
	if evicted := cr.evictor.EvictIdle(); evicted > 0 {
		cr.logger.Info("idle client contexts evicted", slog.Int("count", evicted))
	}
}

// Stop signals the reaper to stop. It is safe to call more than once.
func (cr *ContextReaper) Stop() {
	cr.stopOnce.Do(func() { close(cr.stopCh) })
}
