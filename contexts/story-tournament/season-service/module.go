package seasonservice

import (
	"log/slog"
	"time"

	httpadapter "fable/contexts/story-tournament/season-service/adapters/http"
	"fable/contexts/story-tournament/season-service/adapters/memory"
	"fable/contexts/story-tournament/season-service/application/commands"
	"fable/contexts/story-tournament/season-service/application/queries"
	"fable/contexts/story-tournament/season-service/domain/entities"
	"fable/contexts/story-tournament/season-service/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Lifecycle commands.ChangeLifecycleUseCase
	Store     *memory.Store
}

type Dependencies struct {
	Seasons        ports.SeasonRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Board          ports.SlotBoard
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	createSeason := commands.CreateSeasonUseCase{
		Seasons:        deps.Seasons,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGenerator:    deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	changeLifecycle := commands.ChangeLifecycleUseCase{
		Seasons: deps.Seasons,
		Board:   deps.Board,
		Outbox:  deps.Outbox,
		Clock:   deps.Clock,
		IDGen:   deps.IDGenerator,
		Logger:  deps.Logger,
	}

	getSeason := queries.GetSeasonUseCase{
		Seasons: deps.Seasons,
		Logger:  deps.Logger,
	}
	listSeasons := queries.ListSeasonsUseCase{
		Seasons: deps.Seasons,
		Logger:  deps.Logger,
	}
	resolveActive := queries.ResolveActiveSeasonUseCase{
		Seasons: deps.Seasons,
		Logger:  deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			CreateSeason:    createSeason,
			ChangeLifecycle: changeLifecycle,
			GetSeason:       getSeason,
			ListSeasons:     listSeasons,
			ResolveActive:   resolveActive,
			Logger:          deps.Logger,
		},
		Lifecycle: changeLifecycle,
	}
}

func NewInMemoryModule(seed []entities.Season, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Seasons:        store,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
