package repositories

import (
	"context"
	"sort"
	"sync"

	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
	"github.com/cbodonnell/wordrush/pkg/repositories/models"
)

var _ Repository = &InMemoryRepository{}

// InMemoryRepository keeps stored rows in maps. Nothing survives a restart.
type InMemoryRepository struct {
	lock    sync.RWMutex
	players map[string]models.Player
	rounds  map[int64]models.Round
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		players: make(map[string]models.Player),
		rounds:  make(map[int64]models.Round),
	}
}

func (r *InMemoryRepository) Close(ctx context.Context) error {
	return nil
}

func (r *InMemoryRepository) LoadPlayers(ctx context.Context) ([]gametypes.Player, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	players := make([]gametypes.Player, 0, len(r.players))
	for _, row := range r.players {
		players = append(players, row.ToPlayer())
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Name < players[j].Name
	})
	return players, nil
}

func (r *InMemoryRepository) SavePlayers(ctx context.Context, players []gametypes.Player) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, p := range players {
		r.players[p.Name] = models.NewPlayer(p)
	}
	return nil
}

// SavePlayerRow stores a raw row. It exists so tests can plant corrupt data.
func (r *InMemoryRepository) SavePlayerRow(row models.Player) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.players[row.Name] = row
}

func (r *InMemoryRepository) LoadRounds(ctx context.Context) ([]gametypes.Round, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	rounds := make([]gametypes.Round, 0, len(r.rounds))
	for _, row := range r.rounds {
		rounds = append(rounds, row.ToRound())
	}
	sort.Slice(rounds, func(i, j int) bool {
		return rounds[i].ID < rounds[j].ID
	})
	return rounds, nil
}

func (r *InMemoryRepository) SaveRounds(ctx context.Context, rounds []gametypes.Round) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, round := range rounds {
		r.rounds[round.ID] = models.NewRound(round)
	}
	return nil
}
