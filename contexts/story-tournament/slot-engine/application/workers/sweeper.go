package workers

import (
	"context"
	"log/slog"
	"time"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	"fable/contexts/story-tournament/slot-engine/ports"
)

// ReconciliationSweeper is the periodic self-healing pass over slot state.
// Each run re-derives every non-locked slot of every active season from a
// fresh eligible count: voting slots with nothing left to vote on drop back
// to waiting_for_clips with timers cleared, voting slots with broken timer
// pairs get a fresh window, and stray timers on idle slots are wiped. A
// sweep over consistent state writes nothing, so the job is safe at any
// frequency and safe to run concurrently with user traffic.
type ReconciliationSweeper struct {
	Repo   ports.TournamentRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Window time.Duration
	Logger *slog.Logger
}

// RunOnce sweeps all active seasons. Per-season failures are logged and do
// not stop the remaining seasons from being swept.
func (s ReconciliationSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	refs, err := s.Repo.ListActiveSeasonRefs(ctx)
	if err != nil {
		logger.Error("sweep season listing failed",
			"event", "engine_sweep_list_failed",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(refs) == 0 {
		logger.Debug("sweep found no active seasons",
			"event", "engine_sweep_noop",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
		)
		return nil
	}

	repaired := 0
	for _, ref := range refs {
		count, err := s.SweepSeason(ctx, ref.ID)
		if err != nil {
			logger.Error("season sweep failed",
				"event", "engine_sweep_season_failed",
				"module", "story-tournament/slot-engine",
				"layer", "worker",
				"season_id", ref.ID,
				"error", err.Error(),
			)
			continue
		}
		repaired += count
	}

	if repaired > 0 {
		logger.Info("sweep cycle repaired slots",
			"event", "engine_sweep_completed",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"seasons", len(refs),
			"repaired_slots", repaired,
		)
	} else {
		logger.Debug("sweep cycle clean",
			"event", "engine_sweep_clean",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"seasons", len(refs),
		)
	}
	return nil
}

// SweepSeason re-evaluates one season's non-locked slots in a single change
// set and reports how many needed repair. Each repair emits a diagnostic
// event naming the transition and its cause.
func (s ReconciliationSweeper) SweepSeason(ctx context.Context, seasonID string) (int, error) {
	now := s.now()
	window := s.Window

	ref, found, err := s.Repo.GetSeasonRef(ctx, seasonID)
	if err != nil {
		return 0, err
	}
	if found && ref.VotingWindow > 0 {
		window = ref.VotingWindow
	}

	slots, err := s.Repo.ListSlots(ctx, seasonID)
	if err != nil {
		return 0, err
	}
	reconcile := make([]int, 0, len(slots))
	for _, slot := range slots {
		if slot.Status == entities.SlotStatusLocked {
			continue
		}
		reconcile = append(reconcile, slot.Position)
	}
	if len(reconcile) == 0 {
		return 0, nil
	}

	evaluations, err := s.Repo.ApplyChangeSet(ctx, ports.ChangeSet{
		SeasonID:  seasonID,
		Reconcile: reconcile,
		Now:       now,
		Window:    window,
	})
	if err != nil {
		return 0, err
	}

	logger := application.ResolveLogger(s.Logger)
	repaired := 0
	for _, eval := range evaluations {
		if !eval.Changed {
			continue
		}
		repaired++
		logger.Warn("sweep repaired inconsistent slot",
			"event", "engine_sweep_slot_repaired",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"season_id", seasonID,
			"slot_position", eval.Slot.Position,
			"from_status", string(eval.From),
			"to_status", string(eval.To),
			"reason", string(eval.Reason),
			"eligible", eval.Eligible,
		)
		if err := s.appendReconciledEvent(ctx, seasonID, eval, now); err != nil {
			return repaired, err
		}
	}
	return repaired, nil
}

func (s ReconciliationSweeper) appendReconciledEvent(
	ctx context.Context,
	seasonID string,
	eval entities.Evaluation,
	occurredAt time.Time,
) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newEngineEnvelope(
		eventID,
		"tournament.slot.reconciled",
		seasonID,
		"season_id",
		occurredAt,
		map[string]any{
			"season_id":     seasonID,
			"slot_position": eval.Slot.Position,
			"from_status":   string(eval.From),
			"to_status":     string(eval.To),
			"reason":        string(eval.Reason),
			"eligible":      eval.Eligible,
		},
	)
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s ReconciliationSweeper) now() time.Time {
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}
	return now
}
