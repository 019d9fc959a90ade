package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	"fable/contexts/story-tournament/slot-engine/ports"
)

// TournamentUseCase orchestrates clip moderation and slot lifecycle writes.
// Every mutation that can change a slot's eligible count re-reads that count
// and rewrites the slot status inside one store change set; a stale slot
// version is retried once before the failure surfaces.
type TournamentUseCase struct {
	Repo           ports.TournamentRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Votes          ports.VotePurger
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	VotingWindow   time.Duration
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func (uc TournamentUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc TournamentUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

// resolveWindow picks the voting window for a season: the season's own
// window first, then the engine-wide setting, then the domain default.
func (uc TournamentUseCase) resolveWindow(ref entities.SeasonRef) time.Duration {
	if ref.VotingWindow > 0 {
		return ref.VotingWindow
	}
	if uc.VotingWindow > 0 {
		return uc.VotingWindow
	}
	return entities.DefaultVotingWindow
}

func (uc TournamentUseCase) seasonRef(ctx context.Context, seasonID string) (entities.SeasonRef, error) {
	ref, found, err := uc.Repo.GetSeasonRef(ctx, strings.TrimSpace(seasonID))
	if err != nil {
		return entities.SeasonRef{}, err
	}
	if !found {
		return entities.SeasonRef{}, domainerrors.ErrSeasonNotFound
	}
	return ref, nil
}

// applyChangeSet executes a built change set, retrying exactly once when the
// store reports a stale slot version. The build callback reloads fresh state
// on each attempt so the retry observes the interfering write.
func (uc TournamentUseCase) applyChangeSet(
	ctx context.Context,
	build func(ctx context.Context) (ports.ChangeSet, error),
) ([]entities.Evaluation, error) {
	change, err := build(ctx)
	if err != nil {
		return nil, err
	}
	evaluations, err := uc.Repo.ApplyChangeSet(ctx, change)
	if err == nil || !errors.Is(err, domainerrors.ErrStaleRead) {
		return evaluations, err
	}

	logger := application.ResolveLogger(uc.Logger)
	logger.Warn("tournament change set raced, retrying once",
		"event", "engine_change_set_stale_retry",
		"module", "story-tournament/slot-engine",
		"layer", "application",
		"season_id", change.SeasonID,
	)
	change, err = build(ctx)
	if err != nil {
		return nil, err
	}
	return uc.Repo.ApplyChangeSet(ctx, change)
}

// appendEngineEvent writes one envelope to the outbox. A nil outbox is a
// no-op so pure read/test wiring stays light.
func (uc TournamentUseCase) appendEngineEvent(
	ctx context.Context,
	eventType string,
	seasonID string,
	occurredAt time.Time,
	data map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newEngineEnvelope(eventID, eventType, seasonID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

// appendTransitionEvents emits one event per slot transition produced by a
// change set evaluation.
func (uc TournamentUseCase) appendTransitionEvents(
	ctx context.Context,
	seasonID string,
	evaluations []entities.Evaluation,
	occurredAt time.Time,
) error {
	for _, eval := range evaluations {
		if !eval.Changed {
			continue
		}
		data := map[string]any{
			"season_id":     seasonID,
			"slot_position": eval.Slot.Position,
			"from_status":   string(eval.From),
			"to_status":     string(eval.To),
			"reason":        string(eval.Reason),
			"eligible":      eval.Eligible,
		}
		if err := uc.appendEngineEvent(ctx, transitionEventType(eval), seasonID, occurredAt, data); err != nil {
			return err
		}
	}
	return nil
}

func transitionEventType(eval entities.Evaluation) string {
	switch {
	case eval.From == entities.SlotStatusWaitingForClips && eval.To == entities.SlotStatusVoting:
		return "tournament.slot.voting_started"
	case eval.From == entities.SlotStatusVoting && eval.To == entities.SlotStatusWaitingForClips:
		return "tournament.slot.reset"
	case eval.Reason == entities.ReasonTimerRepaired:
		return "tournament.slot.timer_repaired"
	case eval.Reason == entities.ReasonTimerCleared:
		return "tournament.slot.timer_cleared"
	default:
		return "tournament.slot.changed"
	}
}

// currentActionableSlot returns the single slot accepting clips or votes.
func currentActionableSlot(slots []entities.Slot) (entities.Slot, bool) {
	for _, slot := range slots {
		if slot.Actionable() {
			return slot, true
		}
	}
	return entities.Slot{}, false
}
