// internal/game/sync_state.go
package game

import (
	"github.com/Ahlecss/Gobeluno-server/internal/models"
	"github.com/google/uuid"
)

// SyncState is the table as seen by one connection. Only that connection's own
// hand is included; other players show a HandSize.
type SyncState struct {
	SessionID          uuid.UUID    `json:"sessionId"`
	You                uuid.UUID    `json:"you"`
	Seated             bool         `json:"seated"`
	Phase              Phase        `json:"phase"`
	Players            []PlayerView `json:"players"`
	CurrentPlayerIndex int          `json:"currentPlayerIndex"`
	Direction          int          `json:"direction"`
	DiscardTop         *models.Card `json:"discardTop,omitempty"`
	DiscardSize        int          `json:"discardSize"`
	DeckSize           int          `json:"deckSize"`
	AwaitingColorFrom  *uuid.UUID   `json:"awaitingColorFrom,omitempty"`
}

// State returns a snapshot of the table for the given connection. uuid.Nil
// yields the public view with every hand hidden.
func (s *Session) State(forID uuid.UUID) SyncState {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.stateFor(forID)
}

// Assumes lock is held.
func (s *Session) stateFor(forID uuid.UUID) SyncState {
	st := SyncState{
		SessionID:          s.ID,
		You:                forID,
		Seated:             s.playerIndex(forID) >= 0,
		Phase:              s.Phase,
		Players:            s.playerViews(),
		CurrentPlayerIndex: s.CurrentPlayerIndex,
		Direction:          s.Direction,
		DiscardSize:        len(s.DiscardPile),
		DeckSize:           s.Deck.Len(),
	}
	for i := range st.Players {
		if st.Players[i].ID != forID {
			st.Players[i].Hand = []models.Card{}
		}
	}
	if top := s.topCard(); top != nil {
		c := *top
		st.DiscardTop = &c
	}
	if s.pending != nil {
		id := s.pending.PlayerID
		st.AwaitingColorFrom = &id
	}
	return st
}

// sendSyncState pushes the snapshot privately. Assumes lock is held.
func (s *Session) sendSyncState(id uuid.UUID) {
	st := s.stateFor(id)
	s.fireEventToPlayer(id, Event{Type: EventSyncState, Payload: st})
}
