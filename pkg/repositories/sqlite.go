package repositories

import (
	"context"
	"database/sql"
	"fmt"

	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
	"github.com/cbodonnell/wordrush/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

var _ Repository = &SQLiteRepository{}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	migrations, err := loadMigrations("sqlite")
	if err != nil {
		db.Close()
		return nil, err
	}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute migration %s: %v", m.name, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) LoadPlayers(ctx context.Context) ([]gametypes.Player, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, points, path FROM players ORDER BY name;`)
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

func (r *SQLiteRepository) SavePlayers(ctx context.Context, players []gametypes.Player) error {
	if len(players) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	q := `
	INSERT INTO players (name, points, path) VALUES (?, ?, ?)
	ON CONFLICT (name) DO UPDATE SET points = excluded.points, path = excluded.path;
	`
	for _, p := range players {
		row := models.NewPlayer(p)
		if _, err := tx.ExecContext(ctx, q, row.Name, row.Points, row.Path); err != nil {
			return fmt.Errorf("failed to upsert player %s: %v", row.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) LoadRounds(ctx context.Context) ([]gametypes.Round, error) {
	q := `
	SELECT id, word, started_at, completed_at, completed_by, completed_from, completed_in, path
	FROM rounds ORDER BY id;
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %v", err)
	}
	defer rows.Close()

	rounds := make([]gametypes.Round, 0)
	for rows.Next() {
		var row models.Round
		if err := rows.Scan(&row.ID, &row.Word, &row.StartedAt, &row.CompletedAt, &row.CompletedBy, &row.CompletedFrom, &row.CompletedIn, &row.Path); err != nil {
			return nil, fmt.Errorf("failed to scan round: %v", err)
		}
		rounds = append(rounds, row.ToRound())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %v", err)
	}
	return rounds, nil
}

func (r *SQLiteRepository) SaveRounds(ctx context.Context, rounds []gametypes.Round) error {
	if len(rounds) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	q := `
	INSERT INTO rounds (id, word, started_at, completed_at, completed_by, completed_from, completed_in, path)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		completed_at = excluded.completed_at,
		completed_by = excluded.completed_by,
		completed_from = excluded.completed_from,
		completed_in = excluded.completed_in,
		path = excluded.path;
	`
	for _, round := range rounds {
		row := models.NewRound(round)
		if _, err := tx.ExecContext(ctx, q, row.ID, row.Word, row.StartedAt, row.CompletedAt, row.CompletedBy, row.CompletedFrom, row.CompletedIn, row.Path); err != nil {
			return fmt.Errorf("failed to upsert round %d: %v", row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

// savePlayerRow writes a raw row, bypassing path encoding.
func (r *SQLiteRepository) savePlayerRow(ctx context.Context, row models.Player) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO players (name, points, path) VALUES (?, ?, ?);`, row.Name, row.Points, row.Path)
	if err != nil {
		return fmt.Errorf("failed to insert player: %v", err)
	}
	return nil
}
