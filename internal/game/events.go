// internal/game/events.go
package game

import (
	"github.com/Ahlecss/Gobeluno-server/internal/models"
	"github.com/google/uuid"
)

// EventType names an outbound notification. Values are the wire names clients listen for.
type EventType string

const (
	EventJoinGameStatus    EventType = "joinGameStatus"    // private: result of joinGame
	EventGameStatus        EventType = "gameStatus"        // informational message
	EventUpdatePlayers     EventType = "updatePlayers"     // roster or hands changed
	EventGameStart         EventType = "gameStart"         // cards dealt
	EventCardPlayed        EventType = "cardPlayed"        // a legal play was applied
	EventCardDrawn         EventType = "cardDrawn"         // one per card, forced draws included
	EventAskForColorSwitch EventType = "askForColorSwitch" // private: acting player must pick a color
	EventColorSwitched     EventType = "colorSwitched"     // color picked, turn advanced
	EventDeckReshuffled    EventType = "deckReshuffled"    // discard pile recycled into the deck
	EventGameOver          EventType = "gameOver"          // a hand was emptied
	EventTurnTimeout       EventType = "turnTimeout"       // current player ran out of time
	EventSyncState         EventType = "syncState"         // private: full state on connect
)

// Event is the envelope written to clients.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// PlayerView is a by-value copy of a player, safe to hand to other goroutines.
type PlayerView struct {
	ID       uuid.UUID     `json:"id"`
	Name     string        `json:"name"`
	Hand     []models.Card `json:"hand"`
	HandSize int           `json:"handSize"`
	IsReady  bool          `json:"isReady"`
}

type MessagePayload struct {
	Message string `json:"message"`
}

type PlayersPayload struct {
	Players []PlayerView `json:"players"`
}

type GameStartPayload struct {
	Players            []PlayerView  `json:"players"`
	CurrentPlayerIndex int           `json:"currentPlayerIndex"`
	DiscardPile        []models.Card `json:"discardPile"`
}

type CardPlayedPayload struct {
	Card                models.Card   `json:"card"`
	CurrentPlayerIndex  int           `json:"currentPlayerIndex"`
	PreviousPlayerIndex int           `json:"previousPlayerIndex"`
	DiscardPile         []models.Card `json:"discardPile"`
}

type CardDrawnPayload struct {
	PlayerID           uuid.UUID   `json:"playerId"`
	DrawnCard          models.Card `json:"drawnCard"`
	CurrentPlayerIndex int         `json:"currentPlayerIndex"`
	Forced             bool        `json:"forced,omitempty"`
}

type ColorSwitchedPayload struct {
	DiscardTopCard     models.Card `json:"discardTopCard"`
	CurrentPlayerIndex int         `json:"currentPlayerIndex"`
}

type DeckReshuffledPayload struct {
	DeckSize int `json:"deckSize"`
}

type GameOverPayload struct {
	WinnerID   uuid.UUID    `json:"winnerId"`
	WinnerName string       `json:"winnerName"`
	Players    []PlayerView `json:"players"`
}

type TurnTimeoutPayload struct {
	PlayerID uuid.UUID `json:"playerId"`
}

// viewOf copies a player so later mutations don't leak into queued events.
func viewOf(p *models.Player) PlayerView {
	hand := make([]models.Card, len(p.Hand))
	for i, c := range p.Hand {
		hand[i] = *c
	}
	return PlayerView{
		ID:       p.ID,
		Name:     p.Name,
		Hand:     hand,
		HandSize: len(hand),
		IsReady:  p.IsReady,
	}
}

// Assumes lock is held.
func (s *Session) playerViews() []PlayerView {
	views := make([]PlayerView, len(s.Players))
	for i, p := range s.Players {
		views[i] = viewOf(p)
	}
	return views
}

// Assumes lock is held.
func (s *Session) discardCopy() []models.Card {
	pile := make([]models.Card, len(s.DiscardPile))
	for i, c := range s.DiscardPile {
		pile[i] = *c
	}
	return pile
}

// fireEvent broadcasts to every connection. Assumes lock is held.
func (s *Session) fireEvent(ev Event) {
	if s.BroadcastFn == nil {
		s.log.Debugf("no broadcaster set, dropping %s", ev.Type)
		return
	}
	s.BroadcastFn(ev)
}

// fireEventToPlayer sends to one connection. Assumes lock is held.
func (s *Session) fireEventToPlayer(id uuid.UUID, ev Event) {
	if s.BroadcastToPlayerFn == nil {
		s.log.Debugf("no private broadcaster set, dropping %s for %s", ev.Type, id)
		return
	}
	s.BroadcastToPlayerFn(id, ev)
}

func (s *Session) broadcastPlayers() {
	s.fireEvent(Event{Type: EventUpdatePlayers, Payload: PlayersPayload{Players: s.playerViews()}})
}

func (s *Session) broadcastStatus(msg string) {
	s.fireEvent(Event{Type: EventGameStatus, Payload: MessagePayload{Message: msg}})
}

func (s *Session) broadcastCardPlayed(card *models.Card, previous int) {
	s.fireEvent(Event{
		Type: EventCardPlayed,
		Payload: CardPlayedPayload{
			Card:                *card,
			CurrentPlayerIndex:  s.CurrentPlayerIndex,
			PreviousPlayerIndex: previous,
			DiscardPile:         s.discardCopy(),
		},
	})
}

func (s *Session) broadcastCardDrawn(p *models.Player, card *models.Card, forced bool) {
	s.fireEvent(Event{
		Type: EventCardDrawn,
		Payload: CardDrawnPayload{
			PlayerID:           p.ID,
			DrawnCard:          *card,
			CurrentPlayerIndex: s.CurrentPlayerIndex,
			Forced:             forced,
		},
	})
}
