package repositories

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
)

// Repository is the durable home of the player registry and the round log.
// Saves are upserts keyed by player name and round ID.
type Repository interface {
	Close(ctx context.Context) error
	LoadPlayers(ctx context.Context) ([]gametypes.Player, error)
	SavePlayers(ctx context.Context, players []gametypes.Player) error
	LoadRounds(ctx context.Context) ([]gametypes.Round, error)
	SaveRounds(ctx context.Context, rounds []gametypes.Round) error
}

// NewRepository picks an implementation from the scheme of databaseURL:
// memory://, sqlite://path/to/file.db or postgres(ql)://...
func NewRepository(ctx context.Context, databaseURL string) (Repository, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %v", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "", "memory":
		return NewInMemoryRepository(), nil
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(databaseURL, u.Scheme+"://")
		if path == "" {
			return nil, fmt.Errorf("sqlite database url requires a path")
		}
		repo, err := NewSQLiteRepository(ctx, path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "postgres", "postgresql":
		repo, err := NewPostgresRepository(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}
