// internal/game/effects.go
package game

import (
	"github.com/Ahlecss/Gobeluno-server/internal/models"
	"github.com/google/uuid"
)

// EffectKind is what a played card does to turn order and hands.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectSkip
	EffectReverse
	EffectForceDraw
	EffectColorChoice
	EffectForceDrawAndColorChoice
)

func (k EffectKind) String() string {
	switch k {
	case EffectNone:
		return "none"
	case EffectSkip:
		return "skip"
	case EffectReverse:
		return "reverse"
	case EffectForceDraw:
		return "forceDraw"
	case EffectColorChoice:
		return "colorChoice"
	case EffectForceDrawAndColorChoice:
		return "forceDrawAndColorChoice"
	}
	return "unknown"
}

// Effect describes a card's special semantics. DrawCount is only set for forced draws.
type Effect struct {
	Kind      EffectKind
	DrawCount int
}

// NeedsColor reports whether the turn must wait for a color choice.
func (e Effect) NeedsColor() bool {
	return e.Kind == EffectColorChoice || e.Kind == EffectForceDrawAndColorChoice
}

// EffectFor maps a card value to its effect.
func EffectFor(c *models.Card) Effect {
	switch c.Value {
	case models.ValueSkip:
		return Effect{Kind: EffectSkip}
	case models.ValueReverse:
		return Effect{Kind: EffectReverse}
	case models.ValueDrawTwo:
		return Effect{Kind: EffectForceDraw, DrawCount: 2}
	case models.ValueWild:
		return Effect{Kind: EffectColorChoice}
	case models.ValueDrawFour:
		return Effect{Kind: EffectForceDrawAndColorChoice, DrawCount: 4}
	default:
		return Effect{Kind: EffectNone}
	}
}

// resolve applies the effect of card, just played by actor from seat prev, and
// either advances the turn or parks it for a color choice. Assumes lock is held.
func (s *Session) resolve(actor *models.Player, prev int, card *models.Card) error {
	eff := EffectFor(card)
	steps := 1

	switch eff.Kind {
	case EffectSkip:
		steps = 2
	case EffectReverse:
		s.Direction = -s.Direction
	case EffectForceDraw, EffectForceDrawAndColorChoice:
		if err := s.forceDraw(s.nextIndex(prev), eff.DrawCount); err != nil {
			return s.failFatal(err)
		}
		steps = 2
	}

	if len(actor.Hand) == 0 {
		s.broadcastCardPlayed(card, prev)
		s.endGame(actor)
		return nil
	}

	if eff.NeedsColor() {
		next := prev
		for i := 0; i < steps; i++ {
			next = s.nextIndex(next)
		}
		s.pending = &pendingColorChoice{PlayerID: actor.ID, NextID: s.Players[next].ID}
		s.scheduleTurnTimer()
		s.fireEventToPlayer(actor.ID, Event{Type: EventAskForColorSwitch})
		s.broadcastCardPlayed(card, prev)
		s.broadcastPlayers()
		return nil
	}

	s.advance(steps)
	s.broadcastCardPlayed(card, prev)
	s.broadcastPlayers()
	return nil
}

// forceDraw makes the player at seat draw count cards, broadcasting each one.
// Assumes lock is held.
func (s *Session) forceDraw(seat, count int) error {
	target := s.Players[seat]
	for i := 0; i < count; i++ {
		card, err := s.drawFromDeck()
		if err != nil {
			return err
		}
		target.Hand = append(target.Hand, card)
		s.broadcastCardDrawn(target, card, true)
		s.broadcastPlayers()
	}
	s.logAction(target.ID, "forced_draw", map[string]interface{}{"count": count})
	return nil
}

// ColorSwitch completes a wild or +4 play: sets the active card's color and
// takes the deferred turn advance.
func (s *Session) ColorSwitch(id uuid.UUID, color models.Color) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.playerIndex(id) < 0 {
		return ErrUnknownPlayer
	}
	if s.Phase != PhaseInProgress {
		return ErrWrongPhase
	}
	if s.pending == nil || s.pending.PlayerID != id {
		return ErrNoColorChoicePending
	}
	if !color.IsSuit() {
		return ErrInvalidColor
	}

	s.applyColorChoice(id, color)
	return nil
}

// applyColorChoice resolves the pending choice. Assumes lock is held and a choice is pending.
func (s *Session) applyColorChoice(actor uuid.UUID, color models.Color) {
	top := s.topCard()
	top.Color = color
	s.logAction(actor, "color_switch", map[string]interface{}{"color": color})

	s.takePendingTurn()
	s.fireEvent(Event{
		Type: EventColorSwitched,
		Payload: ColorSwitchedPayload{
			DiscardTopCard:     *top,
			CurrentPlayerIndex: s.CurrentPlayerIndex,
		},
	})
}

// takePendingTurn hands the turn to the player the color choice was holding it
// for. Assumes lock is held and a choice is pending.
func (s *Session) takePendingTurn() {
	next := s.playerIndex(s.pending.NextID)
	s.pending = nil
	if next < 0 {
		s.advance(1)
		return
	}
	s.CurrentPlayerIndex = next
	s.newTurn()
}
