package repositories

import (
	"context"
	"fmt"
	"time"

	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Repository = &PostgresRepository{}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database and applies migrations.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	var username string
	var database string
	if err := pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	migrations, err := loadMigrations("postgres")
	if err != nil {
		pool.Close()
		return nil, err
	}
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to execute migration %s: %v", m.name, err)
		}
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) LoadPlayers(ctx context.Context) ([]gametypes.Player, error) {
	rows, err := r.pool.Query(ctx, "SELECT name, points, path::text FROM players ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %v", err)
	}
	defer rows.Close()

	players := make([]gametypes.Player, 0)
	for rows.Next() {
		var row models.Player
		if err := rows.Scan(&row.Name, &row.Points, &row.Path); err != nil {
			return nil, fmt.Errorf("failed to scan player: %v", err)
		}
		players = append(players, row.ToPlayer())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate players: %v", err)
	}
	return players, nil
}

func (r *PostgresRepository) SavePlayers(ctx context.Context, players []gametypes.Player) error {
	if len(players) == 0 {
		return nil
	}
	q := `
	INSERT INTO players (name, points, path) VALUES ($1, $2, $3::jsonb)
	ON CONFLICT (name) DO UPDATE SET points = $2, path = $3::jsonb, updated_at = now();
	`
	batch := &pgx.Batch{}
	for _, p := range players {
		row := models.NewPlayer(p)
		batch.Queue(q, row.Name, row.Points, row.Path)
	}
	return r.sendBatch(ctx, batch, "players")
}

func (r *PostgresRepository) LoadRounds(ctx context.Context) ([]gametypes.Round, error) {
	q := `
	SELECT id, word, started_at, completed_at, completed_by, completed_from, completed_in, path::text
	FROM rounds ORDER BY id
	`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %v", err)
	}
	defer rows.Close()

	rounds := make([]gametypes.Round, 0)
	for rows.Next() {
		var row models.Round
		var startedAt time.Time
		var completedAt *time.Time
		if err := rows.Scan(&row.ID, &row.Word, &startedAt, &completedAt, &row.CompletedBy, &row.CompletedFrom, &row.CompletedIn, &row.Path); err != nil {
			return nil, fmt.Errorf("failed to scan round: %v", err)
		}
		row.StartedAt = startedAt.UnixNano()
		if completedAt != nil {
			row.CompletedAt = completedAt.UnixNano()
		}
		rounds = append(rounds, row.ToRound())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %v", err)
	}
	return rounds, nil
}

func (r *PostgresRepository) SaveRounds(ctx context.Context, rounds []gametypes.Round) error {
	if len(rounds) == 0 {
		return nil
	}
	q := `
	INSERT INTO rounds (id, word, started_at, completed_at, completed_by, completed_from, completed_in, path)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
	ON CONFLICT (id) DO UPDATE SET completed_at = $4, completed_by = $5, completed_from = $6, completed_in = $7, path = $8::jsonb;
	`
	batch := &pgx.Batch{}
	for _, round := range rounds {
		var completedAt *time.Time
		if round.Completed() {
			t := round.CompletedAt
			completedAt = &t
		}
		batch.Queue(q, round.ID, round.Word, round.StartedAt, completedAt, round.CompletedBy, round.CompletedFrom, round.CompletedIn, gametypes.EncodePath(round.Path))
	}
	return r.sendBatch(ctx, batch, "rounds")
}

func (r *PostgresRepository) sendBatch(ctx context.Context, batch *pgx.Batch, what string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to upsert %s: %v", what, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}
