package voteledger

import (
	"log/slog"

	httpadapter "fable/contexts/story-tournament/vote-ledger/adapters/http"
	"fable/contexts/story-tournament/vote-ledger/adapters/memory"
	"fable/contexts/story-tournament/vote-ledger/application/commands"
	"fable/contexts/story-tournament/vote-ledger/application/queries"
	"fable/contexts/story-tournament/vote-ledger/domain/entities"
	"fable/contexts/story-tournament/vote-ledger/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Votes   commands.VoteUseCase
	Purge   commands.PurgeClipVotesUseCase
	Tallies queries.TallyUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Votes  ports.VoteRepository
	Clips  ports.ClipDirectory
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	voteUseCase := commands.VoteUseCase{
		Votes:  deps.Votes,
		Clips:  deps.Clips,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	purgeUseCase := commands.PurgeClipVotesUseCase{
		Votes:  deps.Votes,
		Logger: deps.Logger,
	}
	tallyUseCase := queries.TallyUseCase{
		Votes: deps.Votes,
	}
	return Module{
		Handler: httpadapter.Handler{
			Votes:   voteUseCase,
			Tallies: tallyUseCase,
			Logger:  deps.Logger,
		},
		Votes:   voteUseCase,
		Purge:   purgeUseCase,
		Tallies: tallyUseCase,
	}
}

func NewInMemoryModule(seed []entities.Vote, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Votes:  store,
		Clips:  store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}
