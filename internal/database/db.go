// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Store persists finished games and the action history.
type Store struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// Connect opens a pool for connStr and pings it.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func NewStore(pool *pgxpool.Pool, logger *logrus.Logger) *Store {
	return &Store{
		pool: pool,
		log:  logger.WithField("component", "database"),
	}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, q := range schema {
			if _, err := tx.Exec(ctx, q); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id         UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		status     TEXT NOT NULL DEFAULT 'in_progress',
		winner_id  UUID,
		turns      INTEGER NOT NULL DEFAULT 0,
		start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		end_time   TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS game_results (
		game_id   UUID NOT NULL REFERENCES games (id) ON DELETE CASCADE,
		player_id UUID NOT NULL,
		name      TEXT NOT NULL DEFAULT '',
		seat      INTEGER NOT NULL,
		hand_size INTEGER NOT NULL,
		did_win   BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (game_id, player_id)
	)`,
	`CREATE TABLE IF NOT EXISTS game_actions (
		session_id     UUID NOT NULL,
		action_index   INTEGER NOT NULL,
		game_id        UUID,
		actor_id       UUID,
		action_type    TEXT NOT NULL,
		action_payload JSONB NOT NULL DEFAULT '{}',
		created_at     TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (session_id, action_index)
	)`,
}
