package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driphq/drip/pkg/history"
	"github.com/robfig/cron/v3"
)

// DefaultReapSchedule is the reaper's scan cadence.
const DefaultReapSchedule = "@every 1h"

// Reaper periodically cancels executions past the lifetime limit and prunes
// aged event history. A tick never propagates an error out of the cron loop.
type Reaper struct {
	cron     *cron.Cron
	manager  *Manager
	history  *history.Tracker
	logger   *slog.Logger
	schedule string
}

// NewReaper creates a cleanup reaper. An empty schedule uses the default.
func NewReaper(manager *Manager, tracker *history.Tracker, logger *slog.Logger, schedule string) *Reaper {
	if schedule == "" {
		schedule = DefaultReapSchedule
	}

	return &Reaper{
		cron:     cron.New(),
		manager:  manager,
		history:  tracker,
		logger:   logger.With("module", "cleanup_reaper"),
		schedule: schedule,
	}
}

// Start registers the cleanup job and starts the cron scheduler.
func (r *Reaper) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		r.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to register cleanup schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "Cleanup reaper started", "schedule", r.schedule)

	return nil
}

// Stop halts the cron scheduler, waiting for a running tick to finish.
func (r *Reaper) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
}

// RunOnce executes a single cleanup tick. Exposed for tests.
func (r *Reaper) RunOnce(ctx context.Context) {
	cancelled := r.manager.ReapExpired(ctx)
	pruned := r.history.Prune()

	r.logger.DebugContext(ctx, "Cleanup tick finished",
		"executions_cancelled", cancelled,
		"history_events_pruned", pruned)
}
