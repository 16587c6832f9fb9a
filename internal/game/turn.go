// internal/game/turn.go
package game

import (
	"fmt"

	"github.com/Ahlecss/Gobeluno-server/internal/models"
	"github.com/google/uuid"
)

// CanPlay reports whether c may be played onto top: same color, same value, or a wild.
func CanPlay(c, top *models.Card) bool {
	if c.Color == models.ColorWild {
		return true
	}
	if top == nil {
		return false
	}
	return c.Color == top.Color || c.Value == top.Value
}

// PlayCard plays the card with cardID from the current player's hand.
// Rejections leave the session untouched and broadcast nothing.
func (s *Session) PlayCard(id uuid.UUID, cardID int) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	idx, err := s.currentActor(id)
	if err != nil {
		return err
	}
	p := s.Players[idx]

	hIdx := p.FindCard(cardID)
	if hIdx < 0 {
		return ErrCardNotInHand
	}
	card := p.Hand[hIdx]
	if !CanPlay(card, s.topCard()) {
		return ErrIllegalPlay
	}

	p.RemoveCard(hIdx)
	s.DiscardPile = append(s.DiscardPile, card)
	s.logAction(id, "play_card", map[string]interface{}{
		"cardId": card.ID,
		"color":  card.Color,
		"value":  card.Value,
	})

	return s.resolve(p, idx, card)
}

// DrawCard draws one card for the current player and passes the turn.
func (s *Session) DrawCard(id uuid.UUID) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	idx, err := s.currentActor(id)
	if err != nil {
		return err
	}
	return s.drawAndPass(s.Players[idx])
}

// drawAndPass is a voluntary draw followed by an ordinary advance. Assumes lock is held.
func (s *Session) drawAndPass(p *models.Player) error {
	card, err := s.drawFromDeck()
	if err != nil {
		return s.failFatal(err)
	}
	p.Hand = append(p.Hand, card)
	s.logAction(p.ID, "draw_card", map[string]interface{}{"cardId": card.ID})

	s.advance(1)
	s.broadcastCardDrawn(p, card, false)
	s.broadcastPlayers()
	return nil
}

// currentActor checks the actor may take a turn action right now and returns
// their seat. Assumes lock is held.
func (s *Session) currentActor(id uuid.UUID) (int, error) {
	idx := s.playerIndex(id)
	if idx < 0 {
		return -1, ErrUnknownPlayer
	}
	if s.Phase != PhaseInProgress {
		return -1, ErrWrongPhase
	}
	if s.pending != nil {
		return -1, ErrColorChoicePending
	}
	if idx != s.CurrentPlayerIndex {
		return -1, ErrNotYourTurn
	}
	return idx, nil
}

// nextIndex is one ordinary step from i in the current direction. Assumes lock is held.
func (s *Session) nextIndex(i int) int {
	n := len(s.Players)
	return (i + s.Direction + n) % n
}

// advance moves the turn pointer steps times and opens a new turn. Assumes lock is held.
func (s *Session) advance(steps int) {
	for i := 0; i < steps; i++ {
		s.CurrentPlayerIndex = s.nextIndex(s.CurrentPlayerIndex)
	}
	s.newTurn()
}

// drawFromDeck pops the top card, recycling the discard pile when the deck is empty.
// Assumes lock is held.
func (s *Session) drawFromDeck() (*models.Card, error) {
	if s.Deck.Len() == 0 {
		if err := s.recycleDiscard(); err != nil {
			return nil, err
		}
	}
	card, ok := s.Deck.Draw()
	if !ok {
		return nil, ErrNoCardsToDraw
	}
	return card, nil
}

// recycleDiscard shuffles everything under the active card back into the deck.
// Played wilds lose their chosen color. Assumes lock is held.
func (s *Session) recycleDiscard() error {
	if len(s.DiscardPile) < 2 {
		return ErrNoCardsToDraw
	}
	top := s.topCard()
	under := s.DiscardPile[:len(s.DiscardPile)-1]

	recycled := make(Deck, len(under))
	copy(recycled, under)
	for _, c := range recycled {
		if c.Value == models.ValueWild || c.Value == models.ValueDrawFour {
			c.Color = models.ColorWild
		}
	}
	recycled.Shuffle(s.rng)

	s.Deck = recycled
	s.DiscardPile = []*models.Card{top}

	s.log.WithField("deckSize", s.Deck.Len()).Info("reshuffled discard pile into deck")
	s.logAction(uuid.Nil, "deck_reshuffle", map[string]interface{}{"deckSize": s.Deck.Len()})
	s.fireEvent(Event{Type: EventDeckReshuffled, Payload: DeckReshuffledPayload{DeckSize: s.Deck.Len()}})
	return nil
}

// failFatal aborts a game whose draw could not be satisfied. Assumes lock is held.
func (s *Session) failFatal(err error) error {
	s.log.WithError(err).Error("unrecoverable game state")
	s.abortGame("No cards left to draw, the game was stopped.")
	return fmt.Errorf("fatal game state: %w", err)
}
