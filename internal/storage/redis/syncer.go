package redis

import (
	"context"
	"log/slog"

	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/logging"
)

// Syncer saves a fresh snapshot whenever the visible state changes.
// Changes arriving while a save is in flight are coalesced.
type Syncer struct {
	store   *Store
	build   func() *Snapshot
	logger  *slog.Logger
	trigger chan struct{}
}

// NewSyncer creates a syncer. build returns nil when there is nothing to
// save, for example before the first run.
func NewSyncer(store *Store, build func() *Snapshot, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{
		store:   store,
		build:   build,
		logger:  logger,
		trigger: make(chan struct{}, 1),
	}
}

// Hook is a bus hook.
func (s *Syncer) Hook(e events.Event) {
	switch e.Name {
	case events.StageActivated, events.StageCompleted, events.TransitionStarted,
		events.SimulationPaused, events.SimulationCompleted, events.SimulationReset,
		events.LayoutChanged, events.MessageRevealed:
	default:
		return
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run saves snapshots until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			snap := s.build()
			if snap == nil {
				continue
			}
			if err := s.store.Save(ctx, snap); err != nil && ctx.Err() == nil {
				s.logger.Warn("snapshot save failed", "run_id", snap.RunID, "error", err)
			}
		}
	}
}
