// internal/game/rules.go
package game

import (
	"fmt"
	"time"
)

// HouseRules are the table settings fixed at process start.
type HouseRules struct {
	MaxPlayers  int           `json:"maxPlayers"`  // seats available in the lobby
	TurnTimeout time.Duration `json:"turnTimeout"` // 0 disables the stall timer
}

// DefaultHouseRules seats up to 10 players with no turn timer.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		MaxPlayers:  10,
		TurnTimeout: 0,
	}
}

// Validate checks the rules against what the card universe can deal.
func (r HouseRules) Validate() error {
	if r.MaxPlayers < MinPlayers || r.MaxPlayers > MaxSeats {
		return fmt.Errorf("maxPlayers must be between %d and %d, got %d", MinPlayers, MaxSeats, r.MaxPlayers)
	}
	if r.TurnTimeout < 0 {
		return fmt.Errorf("turnTimeout must be non-negative, got %s", r.TurnTimeout)
	}
	return nil
}
