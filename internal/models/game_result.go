// internal/models/game_result.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerResult is one seat's standing when a game ended.
type PlayerResult struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	Seat     int       `json:"seat"`
	HandSize int       `json:"hand_size"`
	IsWinner bool      `json:"is_winner"`
}

// GameResult summarizes a finished game for persistence.
type GameResult struct {
	GameID    uuid.UUID      `json:"game_id"`
	SessionID uuid.UUID      `json:"session_id"`
	WinnerID  uuid.UUID      `json:"winner_id"`
	Players   []PlayerResult `json:"players"`
	Turns     int            `json:"turns"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
}
