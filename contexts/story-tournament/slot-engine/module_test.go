package slotengine_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	slotengine "fable/contexts/story-tournament/slot-engine"
	"fable/contexts/story-tournament/slot-engine/application/commands"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	domainerrors "fable/contexts/story-tournament/slot-engine/domain/errors"
	httptransport "fable/contexts/story-tournament/slot-engine/transport/http"
)

func seedSeason(module slotengine.Module, seasonID string, slotCount int) {
	module.Store.SetSeasonRef(entities.SeasonRef{
		ID:        seasonID,
		Genre:     "drama",
		Status:    entities.SeasonRefStatusActive,
		SlotCount: slotCount,
		UpdatedAt: time.Now().UTC(),
	})
	for position := 1; position <= slotCount; position++ {
		status := entities.SlotStatusUpcoming
		if position == 1 {
			status = entities.SlotStatusWaitingForClips
		}
		module.Store.SetSlot(entities.Slot{
			SeasonID: seasonID,
			Position: position,
			Status:   status,
		})
	}
}

func seedVotingSlot(module slotengine.Module, seasonID string, position int, startedAgo, endsIn time.Duration) (time.Time, time.Time) {
	startedAt := time.Now().UTC().Add(-startedAgo)
	endsAt := time.Now().UTC().Add(endsIn)
	module.Store.SetSlot(entities.Slot{
		SeasonID:       seasonID,
		Position:       position,
		Status:         entities.SlotStatusVoting,
		TimerStartedAt: &startedAt,
		TimerEndsAt:    &endsAt,
	})
	return startedAt, endsAt
}

func seedClip(module slotengine.Module, clipID, seasonID string, position int, status entities.ClipStatus) {
	now := time.Now().UTC()
	module.Store.SetClip(entities.Clip{
		ID:              clipID,
		SeasonID:        seasonID,
		SlotPosition:    &position,
		Status:          status,
		Title:           "clip " + clipID,
		AuthorName:      "author-" + clipID,
		PlaybackURL:     "https://clips.example/" + clipID + ".mp4",
		DurationSeconds: 30,
		SubmittedBy:     "user-" + clipID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func outboxEventTypes(t *testing.T, module slotengine.Module) map[string]int {
	t.Helper()
	messages, err := module.Store.ListPendingOutbox(context.Background(), 200)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	counts := map[string]int{}
	for _, message := range messages {
		var envelope struct {
			EventType string `json:"event_type"`
		}
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			t.Fatalf("decode outbox envelope failed: %v", err)
		}
		counts[envelope.EventType]++
	}
	return counts
}

func TestUploadOpensVotingAndReplays(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 3)

	request := httptransport.UploadClipRequest{
		SeasonID:        "season-1",
		Title:           "Opening scene",
		AuthorName:      "robin",
		PlaybackURL:     "https://clips.example/opening.mp4",
		DurationSeconds: 42,
	}
	first, err := module.Handler.UploadClipHandler(context.Background(), "user-1", "idem-upload-1", request)
	if err != nil {
		t.Fatalf("upload clip failed: %v", err)
	}
	if first.Clip.Status != string(entities.ClipStatusPending) {
		t.Fatalf("expected pending clip, got %s", first.Clip.Status)
	}
	if first.Clip.SlotPosition == nil || *first.Clip.SlotPosition != 1 {
		t.Fatalf("expected clip routed to slot 1, got %v", first.Clip.SlotPosition)
	}
	if len(first.Transitions) != 1 {
		t.Fatalf("expected one slot transition, got %d", len(first.Transitions))
	}
	transition := first.Transitions[0]
	if transition.FromStatus != string(entities.SlotStatusWaitingForClips) ||
		transition.ToStatus != string(entities.SlotStatusVoting) {
		t.Fatalf("expected waiting_for_clips -> voting, got %s -> %s", transition.FromStatus, transition.ToStatus)
	}

	slot, err := module.Handler.GetSlotHandler(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.Slot.Status != string(entities.SlotStatusVoting) {
		t.Fatalf("expected slot voting after first upload, got %s", slot.Slot.Status)
	}
	if slot.Slot.TimerStartedAt == nil || slot.Slot.TimerEndsAt == nil {
		t.Fatalf("expected fresh timer on voting start")
	}
	if !slot.Slot.TimerEndsAt.After(*slot.Slot.TimerStartedAt) {
		t.Fatalf("expected well-formed voting window")
	}
	if slot.EligibleClips != 1 {
		t.Fatalf("expected one eligible clip, got %d", slot.EligibleClips)
	}

	replay, err := module.Handler.UploadClipHandler(context.Background(), "user-1", "idem-upload-1", request)
	if err != nil {
		t.Fatalf("replay upload failed: %v", err)
	}
	if !replay.Replayed {
		t.Fatalf("expected replayed upload")
	}
	if replay.Clip.ClipID != first.Clip.ClipID {
		t.Fatalf("expected same clip id on replay, got %s and %s", first.Clip.ClipID, replay.Clip.ClipID)
	}
	if len(replay.Transitions) != 0 {
		t.Fatalf("expected no transitions on replay")
	}

	second, err := module.Handler.UploadClipHandler(context.Background(), "user-2", "idem-upload-2", httptransport.UploadClipRequest{
		SeasonID:        "season-1",
		Title:           "Counter scene",
		AuthorName:      "sam",
		PlaybackURL:     "https://clips.example/counter.mp4",
		DurationSeconds: 31,
	})
	if err != nil {
		t.Fatalf("second upload failed: %v", err)
	}
	if len(second.Transitions) != 0 {
		t.Fatalf("expected no transition while slot already voting, got %d", len(second.Transitions))
	}
}

func TestUploadRequiresActiveSeason(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	module.Store.SetSeasonRef(entities.SeasonRef{
		ID:     "season-draft",
		Genre:  "horror",
		Status: entities.SeasonRefStatusDraft,
	})
	module.Store.SetSlot(entities.Slot{
		SeasonID: "season-draft",
		Position: 1,
		Status:   entities.SlotStatusWaitingForClips,
	})

	_, err := module.Handler.UploadClipHandler(context.Background(), "user-1", "idem-draft-1", httptransport.UploadClipRequest{
		SeasonID:        "season-draft",
		Title:           "Too early",
		AuthorName:      "robin",
		PlaybackURL:     "https://clips.example/early.mp4",
		DurationSeconds: 20,
	})
	if !errors.Is(err, domainerrors.ErrSeasonNotActive) {
		t.Fatalf("expected ErrSeasonNotActive, got %v", err)
	}
}

func TestUploadRejectsLockedSlotTarget(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 2)
	winner := "clip-w"
	module.Store.SetSlot(entities.Slot{
		SeasonID:     "season-1",
		Position:     1,
		Status:       entities.SlotStatusLocked,
		WinnerClipID: &winner,
	})

	_, err := module.Handler.UploadClipHandler(context.Background(), "user-1", "idem-locked-1", httptransport.UploadClipRequest{
		SeasonID:        "season-1",
		Title:           "Late entry",
		AuthorName:      "robin",
		PlaybackURL:     "https://clips.example/late.mp4",
		DurationSeconds: 25,
		SlotPosition:    1,
	})
	if !errors.Is(err, domainerrors.ErrSlotLocked) {
		t.Fatalf("expected ErrSlotLocked, got %v", err)
	}
}

func TestRejectLastActiveKeepsVotingWhilePendingRemains(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 2)
	_, endsAt := seedVotingSlot(module, "season-1", 1, time.Hour, 23*time.Hour)
	seedClip(module, "clip-active", "season-1", 1, entities.ClipStatusActive)
	seedClip(module, "clip-pending", "season-1", 1, entities.ClipStatusPending)

	result, err := module.Handler.RejectClipHandler(context.Background(), "clip-active", "admin-1", httptransport.RejectClipRequest{
		Reason: "copyright strike",
	})
	if err != nil {
		t.Fatalf("reject clip failed: %v", err)
	}
	if result.Clip.Status != string(entities.ClipStatusRejected) {
		t.Fatalf("expected rejected clip, got %s", result.Clip.Status)
	}
	if len(result.Transitions) != 0 {
		t.Fatalf("expected slot untouched while a pending clip remains, got %d transitions", len(result.Transitions))
	}

	slot, err := module.Handler.GetSlotHandler(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.Slot.Status != string(entities.SlotStatusVoting) {
		t.Fatalf("expected slot to stay voting, got %s", slot.Slot.Status)
	}
	if slot.Slot.TimerEndsAt == nil || !slot.Slot.TimerEndsAt.Equal(endsAt) {
		t.Fatalf("expected running timer preserved, got %v", slot.Slot.TimerEndsAt)
	}
	if slot.EligibleClips != 1 {
		t.Fatalf("expected one eligible clip left, got %d", slot.EligibleClips)
	}
}

func TestRejectFinalEligibleClipDrainsSlot(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 2)
	seedVotingSlot(module, "season-1", 1, time.Hour, 23*time.Hour)
	seedClip(module, "clip-only", "season-1", 1, entities.ClipStatusActive)

	result, err := module.Handler.RejectClipHandler(context.Background(), "clip-only", "admin-1", httptransport.RejectClipRequest{})
	if err != nil {
		t.Fatalf("reject clip failed: %v", err)
	}
	if len(result.Transitions) != 1 {
		t.Fatalf("expected drain transition, got %d", len(result.Transitions))
	}
	if result.Transitions[0].ToStatus != string(entities.SlotStatusWaitingForClips) {
		t.Fatalf("expected waiting_for_clips, got %s", result.Transitions[0].ToStatus)
	}
	if result.Transitions[0].Reason != string(entities.ReasonEligibilityDrained) {
		t.Fatalf("unexpected reason %s", result.Transitions[0].Reason)
	}

	slot, err := module.Handler.GetSlotHandler(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.Slot.Status != string(entities.SlotStatusWaitingForClips) {
		t.Fatalf("expected drained slot, got %s", slot.Slot.Status)
	}
	if slot.Slot.TimerStartedAt != nil || slot.Slot.TimerEndsAt != nil {
		t.Fatalf("expected timer cleared on drain")
	}

	rejected, err := module.Handler.GetClipHandler(context.Background(), "clip-only")
	if err != nil {
		t.Fatalf("get rejected clip failed: %v", err)
	}
	if rejected.SlotPosition == nil || *rejected.SlotPosition != 1 {
		t.Fatalf("expected rejected clip to keep its slot position for audit")
	}
}

func TestRejectLockedClipFails(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 2)
	seedClip(module, "clip-winner", "season-1", 1, entities.ClipStatusLocked)

	_, err := module.Handler.RejectClipHandler(context.Background(), "clip-winner", "admin-1", httptransport.RejectClipRequest{})
	if !errors.Is(err, domainerrors.ErrClipLocked) {
		t.Fatalf("expected ErrClipLocked, got %v", err)
	}
}

func TestAssignWinnerLocksAndAdvances(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 3)
	_, endsAt := seedVotingSlot(module, "season-1", 1, 20*time.Hour, 4*time.Hour)
	seedClip(module, "clip-a", "season-1", 1, entities.ClipStatusActive)
	seedClip(module, "clip-b", "season-1", 1, entities.ClipStatusActive)

	result, err := module.Handler.AssignWinnerHandler(context.Background(), "season-1", 1, "admin-1", httptransport.AssignWinnerRequest{
		ClipID: "clip-a",
	})
	if err != nil {
		t.Fatalf("assign winner failed: %v", err)
	}
	if result.Slot.Status != string(entities.SlotStatusLocked) {
		t.Fatalf("expected locked slot, got %s", result.Slot.Status)
	}
	if result.Slot.WinnerClipID != "clip-a" {
		t.Fatalf("expected winner clip-a, got %s", result.Slot.WinnerClipID)
	}
	if result.Slot.TimerEndsAt == nil || !result.Slot.TimerEndsAt.Equal(endsAt) {
		t.Fatalf("expected round timer preserved as historical record")
	}
	if result.Winner.Status != string(entities.ClipStatusLocked) {
		t.Fatalf("expected winner clip locked, got %s", result.Winner.Status)
	}
	if result.FinalSlot {
		t.Fatalf("expected successor to exist")
	}

	successor, err := module.Handler.GetSlotHandler(context.Background(), "season-1", 2)
	if err != nil {
		t.Fatalf("get successor slot failed: %v", err)
	}
	if successor.Slot.Status != string(entities.SlotStatusWaitingForClips) {
		t.Fatalf("expected successor waiting_for_clips, got %s", successor.Slot.Status)
	}

	loser, err := module.Handler.GetClipHandler(context.Background(), "clip-b")
	if err != nil {
		t.Fatalf("get loser clip failed: %v", err)
	}
	if loser.Status != string(entities.ClipStatusActive) {
		t.Fatalf("expected losing clip to stay active, got %s", loser.Status)
	}
}

func TestAssignWinnerStartsPreSeededSuccessorVoting(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 3)
	seedVotingSlot(module, "season-1", 1, time.Hour, 23*time.Hour)
	seedClip(module, "clip-a", "season-1", 1, entities.ClipStatusActive)
	seedClip(module, "clip-next", "season-1", 2, entities.ClipStatusPending)

	result, err := module.Handler.AssignWinnerHandler(context.Background(), "season-1", 1, "admin-1", httptransport.AssignWinnerRequest{
		ClipID: "clip-a",
	})
	if err != nil {
		t.Fatalf("assign winner failed: %v", err)
	}

	votingStarted := false
	for _, transition := range result.Transitions {
		if transition.Position == 2 && transition.ToStatus == string(entities.SlotStatusVoting) {
			votingStarted = true
		}
	}
	if !votingStarted {
		t.Fatalf("expected pre-seeded successor to open voting immediately")
	}

	successor, err := module.Handler.GetSlotHandler(context.Background(), "season-1", 2)
	if err != nil {
		t.Fatalf("get successor slot failed: %v", err)
	}
	if successor.Slot.Status != string(entities.SlotStatusVoting) {
		t.Fatalf("expected successor voting, got %s", successor.Slot.Status)
	}
	if successor.Slot.TimerStartedAt == nil || successor.Slot.TimerEndsAt == nil {
		t.Fatalf("expected fresh window on successor")
	}
}

func TestAssignWinnerFinalSlot(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 1)
	seedVotingSlot(module, "season-1", 1, time.Hour, 23*time.Hour)
	seedClip(module, "clip-a", "season-1", 1, entities.ClipStatusActive)

	result, err := module.Handler.AssignWinnerHandler(context.Background(), "season-1", 1, "admin-1", httptransport.AssignWinnerRequest{
		ClipID: "clip-a",
	})
	if err != nil {
		t.Fatalf("assign winner failed: %v", err)
	}
	if !result.FinalSlot {
		t.Fatalf("expected final slot flag on last position")
	}
}

func TestAssignWinnerGuards(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 2)
	seedClip(module, "clip-a", "season-1", 1, entities.ClipStatusActive)

	_, err := module.Handler.AssignWinnerHandler(context.Background(), "season-1", 1, "admin-1", httptransport.AssignWinnerRequest{
		ClipID: "clip-a",
	})
	if !errors.Is(err, domainerrors.ErrSlotNotVoting) {
		t.Fatalf("expected ErrSlotNotVoting for waiting slot, got %v", err)
	}

	seedVotingSlot(module, "season-1", 1, time.Hour, 23*time.Hour)
	seedClip(module, "clip-rejected", "season-1", 1, entities.ClipStatusRejected)
	_, err = module.Handler.AssignWinnerHandler(context.Background(), "season-1", 1, "admin-1", httptransport.AssignWinnerRequest{
		ClipID: "clip-rejected",
	})
	if !errors.Is(err, domainerrors.ErrClipNotEligible) {
		t.Fatalf("expected ErrClipNotEligible for rejected clip, got %v", err)
	}

	seedClip(module, "clip-elsewhere", "season-1", 2, entities.ClipStatusActive)
	_, err = module.Handler.AssignWinnerHandler(context.Background(), "season-1", 1, "admin-1", httptransport.AssignWinnerRequest{
		ClipID: "clip-elsewhere",
	})
	if !errors.Is(err, domainerrors.ErrClipNotEligible) {
		t.Fatalf("expected ErrClipNotEligible for clip in another slot, got %v", err)
	}
}

func TestUnlockSlotRestartsRoundWithFreshTimer(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 3)

	historicalStart := time.Now().UTC().Add(-50 * time.Hour)
	historicalEnd := time.Now().UTC().Add(-26 * time.Hour)
	winner := "clip-winner"
	module.Store.SetSlot(entities.Slot{
		SeasonID:       "season-1",
		Position:       1,
		Status:         entities.SlotStatusLocked,
		TimerStartedAt: &historicalStart,
		TimerEndsAt:    &historicalEnd,
		WinnerClipID:   &winner,
	})
	module.Store.SetSlot(entities.Slot{
		SeasonID: "season-1",
		Position: 2,
		Status:   entities.SlotStatusWaitingForClips,
	})
	seedClip(module, "clip-winner", "season-1", 1, entities.ClipStatusLocked)
	seedClip(module, "clip-runner-up", "season-1", 1, entities.ClipStatusActive)

	result, err := module.Handler.UnlockSlotHandler(context.Background(), "season-1", 1, "admin-1")
	if err != nil {
		t.Fatalf("unlock slot failed: %v", err)
	}
	if result.Winner.Status != string(entities.ClipStatusActive) {
		t.Fatalf("expected former winner back to active, got %s", result.Winner.Status)
	}
	if result.Slot.Status != string(entities.SlotStatusVoting) {
		t.Fatalf("expected reopened slot voting again, got %s", result.Slot.Status)
	}
	if result.Slot.WinnerClipID != "" {
		t.Fatalf("expected winner cleared on unlock, got %s", result.Slot.WinnerClipID)
	}
	if result.Slot.TimerEndsAt == nil || result.Slot.TimerEndsAt.Equal(historicalEnd) {
		t.Fatalf("expected a fresh voting window, not the historical one")
	}
	if !result.Slot.TimerEndsAt.After(time.Now().UTC()) {
		t.Fatalf("expected fresh window to end in the future")
	}

	successor, err := module.Handler.GetSlotHandler(context.Background(), "season-1", 2)
	if err != nil {
		t.Fatalf("get successor slot failed: %v", err)
	}
	if successor.Slot.Status != string(entities.SlotStatusUpcoming) {
		t.Fatalf("expected successor reverted to upcoming, got %s", successor.Slot.Status)
	}
}

func TestUnlockBlockedOnceSuccessorProgressed(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 3)
	winner := "clip-winner"
	module.Store.SetSlot(entities.Slot{
		SeasonID:     "season-1",
		Position:     1,
		Status:       entities.SlotStatusLocked,
		WinnerClipID: &winner,
	})
	seedVotingSlot(module, "season-1", 2, time.Hour, 23*time.Hour)
	seedClip(module, "clip-winner", "season-1", 1, entities.ClipStatusLocked)

	_, err := module.Handler.UnlockSlotHandler(context.Background(), "season-1", 1, "admin-1")
	if !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition once successor is voting, got %v", err)
	}
}

type stubPurger struct {
	purged map[string]int
}

func (s *stubPurger) PurgeClipVotes(_ context.Context, clipID string) (int, error) {
	if s.purged == nil {
		s.purged = map[string]int{}
	}
	s.purged[clipID] = 7
	return 7, nil
}

func TestDeleteWinnerReopensLockedSlotAndPurgesVotes(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 3)
	winner := "clip-winner"
	module.Store.SetSlot(entities.Slot{
		SeasonID:     "season-1",
		Position:     1,
		Status:       entities.SlotStatusLocked,
		WinnerClipID: &winner,
	})
	module.Store.SetSlot(entities.Slot{
		SeasonID: "season-1",
		Position: 2,
		Status:   entities.SlotStatusWaitingForClips,
	})
	seedClip(module, "clip-winner", "season-1", 1, entities.ClipStatusLocked)
	seedClip(module, "clip-runner-up", "season-1", 1, entities.ClipStatusActive)

	purger := &stubPurger{}
	tournament := module.Tournament
	tournament.Votes = purger

	result, err := tournament.DeleteClip(context.Background(), commands.DeleteClipCommand{
		ClipID:  "clip-winner",
		ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("delete winner failed: %v", err)
	}
	if result.PurgedVotes != 7 {
		t.Fatalf("expected purged vote count 7, got %d", result.PurgedVotes)
	}
	if purger.purged["clip-winner"] != 7 {
		t.Fatalf("expected ledger purge for deleted winner")
	}

	if _, err := module.Handler.GetClipHandler(context.Background(), "clip-winner"); !errors.Is(err, domainerrors.ErrClipNotFound) {
		t.Fatalf("expected deleted clip gone, got %v", err)
	}

	slot, err := module.Handler.GetSlotHandler(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("get reopened slot failed: %v", err)
	}
	if slot.Slot.Status != string(entities.SlotStatusVoting) {
		t.Fatalf("expected reopened slot voting on surviving clip, got %s", slot.Slot.Status)
	}
	if slot.Slot.WinnerClipID != "" {
		t.Fatalf("expected no winner after winner deletion")
	}
}

func TestDeleteFinalClipDrainsVotingSlot(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 2)
	seedVotingSlot(module, "season-1", 1, time.Hour, 23*time.Hour)
	seedClip(module, "clip-only", "season-1", 1, entities.ClipStatusPending)

	result, err := module.Handler.DeleteClipHandler(context.Background(), "clip-only", "admin-1")
	if err != nil {
		t.Fatalf("delete clip failed: %v", err)
	}
	if len(result.Transitions) != 1 || result.Transitions[0].ToStatus != string(entities.SlotStatusWaitingForClips) {
		t.Fatalf("expected drain transition after deleting final clip")
	}
}

func TestEditClipPatchesMetadataAndRejectViaEdit(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 2)
	seedVotingSlot(module, "season-1", 1, time.Hour, 23*time.Hour)
	seedClip(module, "clip-a", "season-1", 1, entities.ClipStatusActive)

	title := "Recut opening"
	result, err := module.Handler.EditClipHandler(context.Background(), "clip-a", "admin-1", httptransport.EditClipRequest{
		Title: &title,
	})
	if err != nil {
		t.Fatalf("edit clip failed: %v", err)
	}
	if result.Clip.Title != "Recut opening" {
		t.Fatalf("expected patched title, got %q", result.Clip.Title)
	}
	if len(result.Transitions) != 0 {
		t.Fatalf("expected metadata edit to leave the slot alone")
	}

	status := string(entities.ClipStatusRejected)
	rejected, err := module.Handler.EditClipHandler(context.Background(), "clip-a", "admin-1", httptransport.EditClipRequest{
		Status: &status,
	})
	if err != nil {
		t.Fatalf("edit to rejected failed: %v", err)
	}
	if rejected.Clip.Status != string(entities.ClipStatusRejected) {
		t.Fatalf("expected rejected status, got %s", rejected.Clip.Status)
	}
	if len(rejected.Transitions) != 1 {
		t.Fatalf("expected status edit to re-evaluate the slot")
	}

	active := string(entities.ClipStatusActive)
	if _, err := module.Handler.EditClipHandler(context.Background(), "clip-a", "admin-1", httptransport.EditClipRequest{
		Status: &active,
	}); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected edit status to allow rejected only, got %v", err)
	}
}

func TestBulkRejectRecomputesSlotOnce(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 2)
	seedVotingSlot(module, "season-1", 1, time.Hour, 23*time.Hour)
	seedClip(module, "clip-1", "season-1", 1, entities.ClipStatusActive)
	seedClip(module, "clip-2", "season-1", 1, entities.ClipStatusActive)
	seedClip(module, "clip-3", "season-1", 1, entities.ClipStatusPending)

	request := httptransport.BulkModerateRequest{
		SeasonID: "season-1",
		Action:   "reject",
		ClipIDs:  []string{"clip-1", "clip-2", "clip-3"},
		Reason:   "season reboot",
	}
	result, err := module.Handler.BulkModerateHandler(context.Background(), "admin-1", "idem-bulk-1", request)
	if err != nil {
		t.Fatalf("bulk reject failed: %v", err)
	}
	if result.Processed != 3 || result.Succeeded != 3 || result.Failed != 0 {
		t.Fatalf("expected 3/3 succeeded, got %+v", result)
	}

	slot, err := module.Handler.GetSlotHandler(context.Background(), "season-1", 1)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.Slot.Status != string(entities.SlotStatusWaitingForClips) {
		t.Fatalf("expected slot drained after bulk reject, got %s", slot.Slot.Status)
	}

	counts := outboxEventTypes(t, module)
	if counts["tournament.slot.reset"] != 1 {
		t.Fatalf("expected exactly one slot recompute event for the batch, got %d", counts["tournament.slot.reset"])
	}
	if counts["tournament.clip.rejected"] != 3 {
		t.Fatalf("expected three clip rejection events, got %d", counts["tournament.clip.rejected"])
	}

	replay, err := module.Handler.BulkModerateHandler(context.Background(), "admin-1", "idem-bulk-1", request)
	if err != nil {
		t.Fatalf("bulk replay failed: %v", err)
	}
	if !replay.Replayed {
		t.Fatalf("expected replayed bulk result")
	}
	if replay.Succeeded != 3 {
		t.Fatalf("expected replayed counts preserved, got %d", replay.Succeeded)
	}
}

func TestBulkContinuesPastItemFailures(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 2)
	seedVotingSlot(module, "season-1", 1, time.Hour, 23*time.Hour)
	seedClip(module, "clip-ok", "season-1", 1, entities.ClipStatusPending)
	seedClip(module, "clip-locked", "season-1", 1, entities.ClipStatusLocked)

	result, err := module.Handler.BulkModerateHandler(context.Background(), "admin-1", "idem-bulk-2", httptransport.BulkModerateRequest{
		SeasonID: "season-1",
		Action:   "approve",
		ClipIDs:  []string{"clip-ok", "clip-locked", "clip-missing"},
	})
	if err != nil {
		t.Fatalf("bulk approve failed: %v", err)
	}
	if result.Succeeded != 1 || result.Failed != 2 {
		t.Fatalf("expected 1 success and 2 failures, got %+v", result)
	}
	for _, item := range result.Items {
		switch item.ClipID {
		case "clip-ok":
			if item.Status != "succeeded" {
				t.Fatalf("expected clip-ok to succeed")
			}
		default:
			if item.Status != "failed" || item.Error == "" {
				t.Fatalf("expected failure detail for %s", item.ClipID)
			}
		}
	}
}

func TestStoryboardListsSlotsWithWinners(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 3)
	winner := "clip-winner"
	module.Store.SetSlot(entities.Slot{
		SeasonID:     "season-1",
		Position:     1,
		Status:       entities.SlotStatusLocked,
		WinnerClipID: &winner,
	})
	module.Store.SetSlot(entities.Slot{
		SeasonID: "season-1",
		Position: 2,
		Status:   entities.SlotStatusWaitingForClips,
	})
	seedClip(module, "clip-winner", "season-1", 1, entities.ClipStatusLocked)
	seedClip(module, "clip-waiting", "season-1", 2, entities.ClipStatusRejected)

	board, err := module.Handler.StoryboardHandler(context.Background(), "season-1")
	if err != nil {
		t.Fatalf("storyboard failed: %v", err)
	}
	if len(board.Slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(board.Slots))
	}
	if board.Slots[0].Winner == nil || board.Slots[0].Winner.ClipID != "clip-winner" {
		t.Fatalf("expected winner attached to locked slot")
	}
	if board.Slots[1].EligibleClips != 0 {
		t.Fatalf("expected rejected clip excluded from eligible count")
	}
	if board.Slots[2].Slot.Status != string(entities.SlotStatusUpcoming) {
		t.Fatalf("expected trailing slot upcoming, got %s", board.Slots[2].Slot.Status)
	}
}

func TestSweepHandlerRepairsSeason(t *testing.T) {
	module := slotengine.NewInMemoryModule(nil, nil)
	seedSeason(module, "season-1", 2)
	// Voting with zero clips is the canonical drift this endpoint repairs.
	seedVotingSlot(module, "season-1", 1, time.Hour, 23*time.Hour)

	repaired, err := module.Handler.SweepSeasonHandler(context.Background(), "season-1")
	if err != nil {
		t.Fatalf("sweep season failed: %v", err)
	}
	if repaired.RepairedSlots != 1 {
		t.Fatalf("expected one repaired slot, got %d", repaired.RepairedSlots)
	}

	again, err := module.Handler.SweepSeasonHandler(context.Background(), "season-1")
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again.RepairedSlots != 0 {
		t.Fatalf("expected idempotent sweep, got %d repairs", again.RepairedSlots)
	}
}
