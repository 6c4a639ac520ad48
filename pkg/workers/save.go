package workers

import (
	"context"
	"time"

	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/repositories"
	"github.com/cbodonnell/wordrush/pkg/state"
)

const (
	// SaveRequestChannelSize is the default capacity of the save request channel
	SaveRequestChannelSize = 1024
	// DefaultSaveInterval is how often a full snapshot is written
	DefaultSaveInterval = 30 * time.Second

	finalSaveTimeout = 10 * time.Second
)

type SaveGameStateWorker struct {
	repository      repositories.Repository
	saveRequestChan <-chan SaveRequest
	stateManager    state.StateManager
	interval        time.Duration
}

type NewSaveGameStateWorkerOptions struct {
	Repository      repositories.Repository
	SaveRequestChan <-chan SaveRequest
	StateManager    state.StateManager
	Interval        time.Duration
}

// SaveRequest carries the rows changed by a single game event.
type SaveRequest struct {
	Players []gametypes.Player
	Rounds  []gametypes.Round
}

// NewSaveGameStateWorker creates a new SaveGameStateWorker.
// The worker processes save requests from the coordinator and
// periodically saves a snapshot of every player and round to the repository.
func NewSaveGameStateWorker(opts NewSaveGameStateWorkerOptions) *SaveGameStateWorker {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	return &SaveGameStateWorker{
		repository:      opts.Repository,
		saveRequestChan: opts.SaveRequestChan,
		stateManager:    opts.StateManager,
		interval:        interval,
	}
}

// Start runs until ctx is done, then flushes pending requests and writes a final snapshot.
func (w *SaveGameStateWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush()
			return
		case saveRequest := <-w.saveRequestChan:
			w.save(ctx, saveRequest)
		case <-ticker.C:
			w.saveSnapshot(ctx)
		}
	}
}

func (w *SaveGameStateWorker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
	defer cancel()
	for {
		select {
		case saveRequest := <-w.saveRequestChan:
			w.save(ctx, saveRequest)
		default:
			w.saveSnapshot(ctx)
			return
		}
	}
}

func (w *SaveGameStateWorker) save(ctx context.Context, saveRequest SaveRequest) {
	if err := w.repository.SavePlayers(ctx, saveRequest.Players); err != nil {
		log.Error("Failed to save players: %v", err)
	}
	if err := w.repository.SaveRounds(ctx, saveRequest.Rounds); err != nil {
		log.Error("Failed to save rounds: %v", err)
	}
}

func (w *SaveGameStateWorker) saveSnapshot(ctx context.Context) {
	players := w.stateManager.Players()
	if err := w.repository.SavePlayers(ctx, players); err != nil {
		log.Error("Failed to save player snapshot: %v", err)
		return
	}
	rounds := make([]gametypes.Round, 0, 2)
	if previous, ok := w.stateManager.PreviousRound(); ok {
		rounds = append(rounds, previous)
	}
	if current, err := w.stateManager.CurrentRound(); err == nil {
		rounds = append(rounds, current)
	}
	if err := w.repository.SaveRounds(ctx, rounds); err != nil {
		log.Error("Failed to save round snapshot: %v", err)
		return
	}
	log.Debug("Saved snapshot of %d players", len(players))
}
