package workers

import (
	"context"
	"log/slog"
	"time"

	application "fable/contexts/story-tournament/slot-engine/application"
	"fable/contexts/story-tournament/slot-engine/application/commands"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	"fable/contexts/story-tournament/slot-engine/ports"
)

const expirerActorID = "system:voting-expirer"

// VotingExpirer closes voting rounds whose window has elapsed. The leading
// clip by ledger tally (weight, then vote count, then earliest submission)
// wins the slot through the regular winner-assignment path. A round that
// expires without a single valid vote restarts its window instead of
// locking a winnerless slot.
type VotingExpirer struct {
	Repo       ports.TournamentRepository
	Tallies    ports.TallyReader
	Tournament commands.TournamentUseCase
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	BatchSize  int
	Window     time.Duration
	Logger     *slog.Logger
}

// RunOnce processes a bounded batch of expired voting slots. Failures on one
// slot are logged and do not block the rest of the batch.
func (e VotingExpirer) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(e.Logger)
	limit := e.BatchSize
	if limit <= 0 {
		limit = 50
	}
	now := e.now()

	expired, err := e.Repo.ListExpiredVotingSlots(ctx, now, limit)
	if err != nil {
		logger.Error("expired slot listing failed",
			"event", "engine_expire_list_failed",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(expired) == 0 {
		logger.Debug("no expired voting slots",
			"event", "engine_expire_noop",
			"module", "story-tournament/slot-engine",
			"layer", "worker",
		)
		return nil
	}

	for _, slot := range expired {
		if err := e.closeRound(ctx, slot, now); err != nil {
			logger.Error("expired round close failed",
				"event", "engine_expire_close_failed",
				"module", "story-tournament/slot-engine",
				"layer", "worker",
				"season_id", slot.SeasonID,
				"slot_position", slot.Position,
				"error", err.Error(),
			)
		}
	}
	return nil
}

func (e VotingExpirer) closeRound(ctx context.Context, slot entities.Slot, now time.Time) error {
	logger := application.ResolveLogger(e.Logger)

	winnerID, err := e.pickWinner(ctx, slot)
	if err != nil {
		return err
	}
	if winnerID == "" {
		return e.restartWindow(ctx, slot, now)
	}

	result, err := e.Tournament.AssignWinner(ctx, commands.AssignWinnerCommand{
		SeasonID:     slot.SeasonID,
		SlotPosition: slot.Position,
		ClipID:       winnerID,
		ActorID:      expirerActorID,
	})
	if err != nil {
		return err
	}
	logger.Info("expired round closed with winner",
		"event", "engine_expire_round_closed",
		"module", "story-tournament/slot-engine",
		"layer", "worker",
		"season_id", slot.SeasonID,
		"slot_position", slot.Position,
		"winner_clip_id", result.Winner.ID,
		"final_slot", result.FinalSlot,
	)
	return nil
}

// pickWinner resolves the leading eligible clip from the ledger tally.
// Tally rows for clips that were deleted or moderated away mid-round are
// skipped; ties break by weight, then votes, then earliest submission.
func (e VotingExpirer) pickWinner(ctx context.Context, slot entities.Slot) (string, error) {
	if e.Tallies == nil {
		return "", nil
	}
	tally, err := e.Tallies.SlotTally(ctx, slot.SeasonID, slot.Position)
	if err != nil {
		return "", err
	}

	winnerID := ""
	var best ports.ClipTally
	var bestCreated time.Time
	for _, row := range tally {
		clip, err := e.Repo.GetClip(ctx, row.ClipID)
		if err != nil {
			continue
		}
		if !clip.Status.Eligible() || clip.SlotPosition == nil || *clip.SlotPosition != slot.Position {
			continue
		}
		if winnerID == "" ||
			row.Weight > best.Weight ||
			(row.Weight == best.Weight && row.Votes > best.Votes) ||
			(row.Weight == best.Weight && row.Votes == best.Votes && clip.CreatedAt.Before(bestCreated)) {
			winnerID = clip.ID
			best = row
			bestCreated = clip.CreatedAt
		}
	}
	return winnerID, nil
}

// restartWindow stamps a fresh voting window on a voteless expired round and
// records the restart for observability.
func (e VotingExpirer) restartWindow(ctx context.Context, slot entities.Slot, now time.Time) error {
	logger := application.ResolveLogger(e.Logger)
	window := e.Window
	if ref, found, err := e.Repo.GetSeasonRef(ctx, slot.SeasonID); err == nil && found && ref.VotingWindow > 0 {
		window = ref.VotingWindow
	}

	restarted := slot
	entities.StartTimer(&restarted, now, window)
	restarted.UpdatedAt = now
	if _, err := e.Repo.ApplyChangeSet(ctx, ports.ChangeSet{
		SeasonID:  slot.SeasonID,
		SaveSlots: []entities.Slot{restarted},
		Now:       now,
		Window:    window,
	}); err != nil {
		return err
	}

	logger.Info("voteless round restarted",
		"event", "engine_expire_window_restarted",
		"module", "story-tournament/slot-engine",
		"layer", "worker",
		"season_id", slot.SeasonID,
		"slot_position", slot.Position,
	)

	if e.Outbox == nil {
		return nil
	}
	eventID, err := e.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newEngineEnvelope(
		eventID,
		"tournament.slot.window_restarted",
		slot.SeasonID,
		"season_id",
		now,
		map[string]any{
			"season_id":     slot.SeasonID,
			"slot_position": slot.Position,
		},
	)
	if err != nil {
		return err
	}
	return e.Outbox.AppendOutbox(ctx, envelope)
}

func (e VotingExpirer) now() time.Time {
	now := time.Now().UTC()
	if e.Clock != nil {
		now = e.Clock.Now().UTC()
	}
	return now
}
