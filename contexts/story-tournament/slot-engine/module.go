package slotengine

import (
	"log/slog"
	"time"

	httpadapter "fable/contexts/story-tournament/slot-engine/adapters/http"
	"fable/contexts/story-tournament/slot-engine/adapters/memory"
	"fable/contexts/story-tournament/slot-engine/application/commands"
	"fable/contexts/story-tournament/slot-engine/application/queries"
	"fable/contexts/story-tournament/slot-engine/application/workers"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	"fable/contexts/story-tournament/slot-engine/ports"
)

type Module struct {
	Handler    httpadapter.Handler
	Tournament commands.TournamentUseCase
	Store      *memory.Store
}

type Dependencies struct {
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

func NewModule(deps Dependencies) Module {
	tournamentUseCase := commands.TournamentUseCase{
		Repo:           deps.Repo,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Votes:          deps.Votes,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		VotingWindow:   deps.VotingWindow,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	storyboardUseCase := queries.StoryboardUseCase{
		Repo: deps.Repo,
	}
	clipQueryUseCase := queries.ClipQueryUseCase{
		Repo: deps.Repo,
	}
	sweeper := workers.ReconciliationSweeper{
		Repo:   deps.Repo,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Window: deps.VotingWindow,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Tournament: tournamentUseCase,
			Storyboard: storyboardUseCase,
			Clips:      clipQueryUseCase,
			Sweeper:    sweeper,
			Logger:     deps.Logger,
		},
		Tournament: tournamentUseCase,
	}
}

func NewInMemoryModule(seed []entities.Clip, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Repo:           store,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGen:          store,
		VotingWindow:   entities.DefaultVotingWindow,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
