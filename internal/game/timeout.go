// internal/game/timeout.go
package game

import (
	"time"

	"github.com/google/uuid"
)

// newTurn bumps the turn id and restarts the stall timer. Assumes lock is held.
func (s *Session) newTurn() {
	s.turnID++
	s.scheduleTurnTimer()
}

// scheduleTurnTimer (re)arms the timer for the current turn if the house rules
// set a timeout. Assumes lock is held.
func (s *Session) scheduleTurnTimer() {
	s.stopTurnTimer()
	if s.Rules.TurnTimeout <= 0 || s.Phase != PhaseInProgress || len(s.Players) == 0 {
		return
	}
	playerID := s.Players[s.CurrentPlayerIndex].ID
	turnID := s.turnID
	s.turnTimer = time.AfterFunc(s.Rules.TurnTimeout, func() {
		s.handleTimeout(playerID, turnID)
	})
}

// Assumes lock is held.
func (s *Session) stopTurnTimer() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
}

// handleTimeout acts for a stalled player: a pending color choice gets a random
// color, otherwise the player draws one card and the turn passes.
func (s *Session) handleTimeout(playerID uuid.UUID, turnID int) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Phase != PhaseInProgress || s.turnID != turnID || s.Players[s.CurrentPlayerIndex].ID != playerID {
		s.log.Debugf("stale turn timer for %s (turn %d, now %d), ignoring", playerID, turnID, s.turnID)
		return
	}

	s.log.WithField("player", playerID).Info("turn timed out")
	s.logAction(playerID, "turn_timeout", nil)
	s.fireEvent(Event{Type: EventTurnTimeout, Payload: TurnTimeoutPayload{PlayerID: playerID}})

	if s.pending != nil && s.pending.PlayerID == playerID {
		s.applyColorChoice(playerID, s.randomColor())
		return
	}
	if err := s.drawAndPass(s.Players[s.CurrentPlayerIndex]); err != nil {
		s.log.WithError(err).Warn("auto-draw on timeout failed")
	}
}
