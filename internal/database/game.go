// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/cache"
	"github.com/Ahlecss/Gobeluno-server/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecordGameResult stores the outcome of a finished game and one row per seat.
func (s *Store) RecordGameResult(ctx context.Context, result models.GameResult) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, session_id, status, winner_id, turns, start_time, end_time)
			VALUES ($1, $2, 'completed', $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET status = 'completed', winner_id = $3, turns = $4, end_time = $6
		`
		if _, e := tx.Exec(ctx, upsertGame,
			result.GameID, result.SessionID, result.WinnerID, result.Turns, result.StartedAt, result.EndedAt,
		); e != nil {
			return e
		}

		for _, p := range result.Players {
			q := `
				INSERT INTO game_results (game_id, player_id, name, seat, hand_size, did_win)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET name = $3, seat = $4, hand_size = $5, did_win = $6
			`
			if _, e := tx.Exec(ctx, q, result.GameID, p.PlayerID, p.Name, p.Seat, p.HandSize, p.IsWinner); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}

	s.log.WithField("game", result.GameID).Debugf("stored result for %d players", len(result.Players))
	return nil
}

// InsertGameActions writes a batch of action records in one transaction.
// Records are keyed by (session, index), so replays of the same batch are no-ops.
func (s *Store) InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d: %w", rec.ActionIndex, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert game actions: %w", err)
	}
	return nil
}

// insertGameActionTx inserts one action and keeps the games row in step with
// game_start, game_over and game_abort records.
func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	at := time.UnixMilli(rec.Timestamp)

	if rec.GameID != uuid.Nil {
		upsertGameQ := `
			INSERT INTO games (id, session_id, status, start_time)
			VALUES ($1, $2, 'in_progress', $3)
			ON CONFLICT (id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID, rec.SessionID, at); err != nil {
			return err
		}
	}

	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO game_actions (
			session_id, action_index, game_id, actor_id, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, action_index) DO NOTHING
	`
	if _, err := tx.Exec(ctx, actionInsertQ,
		rec.SessionID, rec.ActionIndex, nullableID(rec.GameID), nullableID(rec.ActorID), rec.ActionType, jsonPayload, at,
	); err != nil {
		return err
	}

	var status string
	switch rec.ActionType {
	case "game_over":
		status = "completed"
	case "game_abort":
		status = "aborted"
	default:
		return nil
	}
	if rec.GameID == uuid.Nil {
		return nil
	}
	finalizeQ := `
		UPDATE games
		SET status = $2, end_time = $3
		WHERE id = $1 AND status = 'in_progress'
	`
	_, err = tx.Exec(ctx, finalizeQ, rec.GameID, status, at)
	return err
}

// MarkGameAbandoned closes a game that stopped producing actions.
func (s *Store) MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE games
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		_, e := tx.Exec(ctx, q, gameID)
		return e
	})
}

// GameStatus returns the status column for a game, or pgx.ErrNoRows.
func (s *Store) GameStatus(ctx context.Context, gameID uuid.UUID) (string, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM games WHERE id = $1`, gameID).Scan(&status)
	return status, err
}

func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
