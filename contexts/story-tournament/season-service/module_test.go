package seasonservice_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	seasonservice "fable/contexts/story-tournament/season-service"
	"fable/contexts/story-tournament/season-service/application/commands"
	"fable/contexts/story-tournament/season-service/domain/entities"
	domainerrors "fable/contexts/story-tournament/season-service/domain/errors"
	httptransport "fable/contexts/story-tournament/season-service/transport/http"
)

type stubBoard struct {
	open int
	err  error
}

func (b stubBoard) OpenSlotCount(context.Context, string) (int, error) {
	return b.open, b.err
}

func seedSeason(id, genre string, status entities.SeasonStatus) entities.Season {
	now := time.Now().UTC()
	return entities.Season{
		ID:           id,
		Title:        "Season " + id,
		Genre:        genre,
		Status:       status,
		SlotCount:    4,
		VotingWindow: entities.DefaultVotingWindow,
		CreatedBy:    "curator-1",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func outboxEventTypes(t *testing.T, module seasonservice.Module) map[string]int {
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

func TestCreateSeasonAppliesDefaultsAndReplays(t *testing.T) {
	module := seasonservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	req := httptransport.CreateSeasonRequest{
		Title:       "Midnight Tales",
		Description: "eight rounds of horror shorts",
		Genre:       "Horror",
		SlotCount:   8,
	}

	created, err := module.Handler.CreateSeasonHandler(ctx, "curator-1", "create-1", req)
	if err != nil {
		t.Fatalf("create season failed: %v", err)
	}
	if created.Season.Status != "draft" {
		t.Fatalf("expected draft season, got %q", created.Season.Status)
	}
	if created.Season.Genre != "horror" {
		t.Fatalf("expected normalized genre horror, got %q", created.Season.Genre)
	}
	if created.Season.VotingWindowSeconds != 86400 {
		t.Fatalf("expected default 24h voting window, got %d seconds", created.Season.VotingWindowSeconds)
	}
	if created.Replayed {
		t.Fatalf("expected fresh create, got replay")
	}
	if counts := outboxEventTypes(t, module); counts["tournament.season.created"] != 1 {
		t.Fatalf("expected one season.created event, got %v", counts)
	}

	replayed, err := module.Handler.CreateSeasonHandler(ctx, "curator-1", "create-1", req)
	if err != nil {
		t.Fatalf("replay create failed: %v", err)
	}
	if !replayed.Replayed {
		t.Fatalf("expected replay on same idempotency key")
	}
	if replayed.Season.SeasonID != created.Season.SeasonID {
		t.Fatalf("expected replay to return the original season, got %q and %q", replayed.Season.SeasonID, created.Season.SeasonID)
	}
	if counts := outboxEventTypes(t, module); counts["tournament.season.created"] != 1 {
		t.Fatalf("expected replay to emit nothing, got %v", counts)
	}

	mutated := req
	mutated.Title = "Midnight Tales II"
	if _, err := module.Handler.CreateSeasonHandler(ctx, "curator-1", "create-1", mutated); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict for reused key, got %v", err)
	}
}

func TestCreateSeasonValidatesInput(t *testing.T) {
	module := seasonservice.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	valid := httptransport.CreateSeasonRequest{
		Title:     "Autumn Drama Cup",
		Genre:     "drama",
		SlotCount: 4,
	}

	if _, err := module.Handler.CreateSeasonHandler(ctx, "curator-1", "", valid); !errors.Is(err, domainerrors.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}

	cases := map[string]httptransport.CreateSeasonRequest{
		"unsupported genre": {Title: "Autumn Cup", Genre: "western", SlotCount: 4},
		"short title":       {Title: "ab", Genre: "drama", SlotCount: 4},
		"zero slots":        {Title: "Autumn Cup", Genre: "drama", SlotCount: 0},
		"too many slots":    {Title: "Autumn Cup", Genre: "drama", SlotCount: 65},
	}
	for name, req := range cases {
		if _, err := module.Handler.CreateSeasonHandler(ctx, "curator-1", "create-"+name, req); !errors.Is(err, domainerrors.ErrInvalidSeasonInput) {
			t.Fatalf("%s: expected ErrInvalidSeasonInput, got %v", name, err)
		}
	}
}

func TestActivateSeasonEnforcesGenreExclusivity(t *testing.T) {
	module := seasonservice.NewInMemoryModule([]entities.Season{
		seedSeason("season-live", "drama", entities.SeasonStatusActive),
	}, nil)
	ctx := context.Background()

	blocked, err := module.Handler.CreateSeasonHandler(ctx, "curator-1", "create-blocked", httptransport.CreateSeasonRequest{
		Title:     "Second Drama Run",
		Genre:     "drama",
		SlotCount: 4,
	})
	if err != nil {
		t.Fatalf("create draft failed: %v", err)
	}
	if _, err := module.Handler.ActivateSeasonHandler(ctx, "curator-1", blocked.Season.SeasonID); !errors.Is(err, domainerrors.ErrGenreOccupied) {
		t.Fatalf("expected ErrGenreOccupied while drama is live, got %v", err)
	}

	fresh, err := module.Handler.CreateSeasonHandler(ctx, "curator-1", "create-scifi", httptransport.CreateSeasonRequest{
		Title:     "Orbital Shorts",
		Genre:     "scifi",
		SlotCount: 4,
	})
	if err != nil {
		t.Fatalf("create scifi draft failed: %v", err)
	}
	activated, err := module.Handler.ActivateSeasonHandler(ctx, "curator-1", fresh.Season.SeasonID)
	if err != nil {
		t.Fatalf("activate scifi season failed: %v", err)
	}
	if activated.Season.Status != "active" {
		t.Fatalf("expected active season, got %q", activated.Season.Status)
	}
	if activated.Season.ActivatedAt == "" {
		t.Fatalf("expected activation timestamp to be set")
	}
	if counts := outboxEventTypes(t, module); counts["tournament.season.activated"] != 1 {
		t.Fatalf("expected one season.activated event, got %v", counts)
	}

	if _, err := module.Handler.ActivateSeasonHandler(ctx, "curator-1", fresh.Season.SeasonID); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on repeat activation, got %v", err)
	}
}

func TestFinishSeasonRequiresAllSlotsLocked(t *testing.T) {
	module := seasonservice.NewInMemoryModule([]entities.Season{
		seedSeason("season-live", "horror", entities.SeasonStatusActive),
		seedSeason("season-draft", "comedy", entities.SeasonStatusDraft),
	}, nil)
	ctx := context.Background()

	lifecycle := module.Lifecycle
	lifecycle.Board = stubBoard{open: 2}
	if _, err := lifecycle.Execute(ctx, commands.ChangeLifecycleCommand{
		SeasonID: "season-live",
		ActorID:  "curator-1",
		Action:   commands.LifecycleActionFinish,
	}); !errors.Is(err, domainerrors.ErrSeasonIncomplete) {
		t.Fatalf("expected ErrSeasonIncomplete with open slots, got %v", err)
	}

	lifecycle.Board = stubBoard{}
	finished, err := lifecycle.Execute(ctx, commands.ChangeLifecycleCommand{
		SeasonID: "season-live",
		ActorID:  "curator-1",
		Action:   commands.LifecycleActionFinish,
	})
	if err != nil {
		t.Fatalf("finish season failed: %v", err)
	}
	if finished.Status != entities.SeasonStatusFinished {
		t.Fatalf("expected finished season, got %q", finished.Status)
	}
	if finished.FinishedAt == nil {
		t.Fatalf("expected finish timestamp to be set")
	}
	if counts := outboxEventTypes(t, module); counts["tournament.season.finished"] != 1 {
		t.Fatalf("expected one season.finished event, got %v", counts)
	}

	if _, err := lifecycle.Execute(ctx, commands.ChangeLifecycleCommand{
		SeasonID: "season-draft",
		ActorID:  "curator-1",
		Action:   commands.LifecycleActionFinish,
	}); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition finishing a draft, got %v", err)
	}
}

func TestSeasonQueriesFilterAndResolve(t *testing.T) {
	module := seasonservice.NewInMemoryModule([]entities.Season{
		seedSeason("season-live", "drama", entities.SeasonStatusActive),
		seedSeason("season-old", "drama", entities.SeasonStatusFinished),
		seedSeason("season-next", "comedy", entities.SeasonStatusDraft),
	}, nil)
	ctx := context.Background()

	all, err := module.Handler.ListSeasonsHandler(ctx, "", "")
	if err != nil {
		t.Fatalf("list seasons failed: %v", err)
	}
	if len(all.Items) != 3 {
		t.Fatalf("expected 3 seasons, got %d", len(all.Items))
	}

	active, err := module.Handler.ListSeasonsHandler(ctx, "active", "")
	if err != nil {
		t.Fatalf("list active seasons failed: %v", err)
	}
	if len(active.Items) != 1 || active.Items[0].SeasonID != "season-live" {
		t.Fatalf("expected only season-live active, got %+v", active.Items)
	}

	drama, err := module.Handler.ListSeasonsHandler(ctx, "", "drama")
	if err != nil {
		t.Fatalf("list drama seasons failed: %v", err)
	}
	if len(drama.Items) != 2 {
		t.Fatalf("expected 2 drama seasons, got %d", len(drama.Items))
	}

	resolved, err := module.Handler.ResolveActiveSeasonHandler(ctx, "Drama")
	if err != nil {
		t.Fatalf("resolve active drama failed: %v", err)
	}
	if resolved.Season.SeasonID != "season-live" {
		t.Fatalf("expected season-live, got %q", resolved.Season.SeasonID)
	}

	if _, err := module.Handler.ResolveActiveSeasonHandler(ctx, "comedy"); !errors.Is(err, domainerrors.ErrSeasonNotFound) {
		t.Fatalf("expected ErrSeasonNotFound for genre without live season, got %v", err)
	}
}

func TestGetSeasonMissing(t *testing.T) {
	module := seasonservice.NewInMemoryModule(nil, nil)
	if _, err := module.Handler.GetSeasonHandler(context.Background(), "season-missing"); !errors.Is(err, domainerrors.ErrSeasonNotFound) {
		t.Fatalf("expected ErrSeasonNotFound, got %v", err)
	}
}
