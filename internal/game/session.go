// internal/game/session.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/cache"
	"github.com/Ahlecss/Gobeluno-server/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownPlayer        = errors.New("no player for this connection")
	ErrWrongPhase           = errors.New("action not allowed in this phase")
	ErrTableFull            = errors.New("table is full")
	ErrNotYourTurn          = errors.New("not this player's turn")
	ErrCardNotInHand        = errors.New("card is not in the player's hand")
	ErrIllegalPlay          = errors.New("card does not match the discard pile")
	ErrColorChoicePending   = errors.New("waiting for a color choice")
	ErrNoColorChoicePending = errors.New("no color choice pending for this player")
	ErrInvalidColor         = errors.New("color must be red, green, blue or yellow")
	ErrNoCardsToDraw        = errors.New("deck and discard pile are exhausted")
)

// Phase is the session's position in its state machine.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseInProgress
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseInProgress:
		return "inProgress"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "lobby":
		*p = PhaseLobby
	case "inProgress":
		*p = PhaseInProgress
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// actionQueueSize bounds the records waiting to be published.
const actionQueueSize = 256

// ActionPublisher receives every accepted action, e.g. cache.Publisher.
type ActionPublisher interface {
	PublishGameAction(ctx context.Context, record cache.GameActionRecord) error
}

// OnGameEndFunc is called with the lock held once a hand has been emptied.
type OnGameEndFunc func(result models.GameResult)

// pendingColorChoice parks the turn after a wild or +4 until PlayerID picks a color.
type pendingColorChoice struct {
	PlayerID uuid.UUID
	NextID   uuid.UUID // takes the turn once the color arrives
}

// Session is the single shared table. Every exported method takes Mu for the
// whole action so validation, mutation and broadcast are atomic.
type Session struct {
	ID     uuid.UUID
	GameID uuid.UUID // current game, uuid.Nil in the lobby
	Rules  HouseRules

	Players            []*models.Player
	Deck               Deck
	DiscardPile        []*models.Card
	CurrentPlayerIndex int
	Direction          int
	Phase              Phase

	pending     *pendingColorChoice
	turnID      int
	turnTimer   *time.Timer
	actionIndex int
	actions     chan cache.GameActionRecord
	startedAt   time.Time
	rng         *rand.Rand
	log         *logrus.Entry

	Mu sync.Mutex

	// BroadcastFn sends an event to every connection. Called with Mu held.
	BroadcastFn func(ev Event)

	// BroadcastToPlayerFn sends an event to one connection. Called with Mu held.
	BroadcastToPlayerFn func(id uuid.UUID, ev Event)

	OnGameEnd OnGameEndFunc
	ActionLog ActionPublisher
}

// NewSession returns an empty lobby with a freshly shuffled deck.
func NewSession(logger *logrus.Logger, rules HouseRules) *Session {
	id := uuid.New()
	s := &Session{
		ID:          id,
		Rules:       rules,
		Players:     []*models.Player{},
		DiscardPile: []*models.Card{},
		Direction:   1,
		Phase:       PhaseLobby,
		rng:         newRand(),
		log:         logger.WithField("session", id),
	}
	s.Deck = NewDeck(s.rng)
	return s
}

// Connect seats a new connection while the lobby has room, then sends it the
// current state. Connections that cannot be seated still receive broadcasts.
func (s *Session) Connect(id uuid.UUID) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	err := s.seat(id)
	switch {
	case errors.Is(err, ErrWrongPhase):
		s.fireEventToPlayer(id, Event{Type: EventGameStatus, Payload: MessagePayload{Message: "A game is already in progress."}})
	case errors.Is(err, ErrTableFull):
		s.fireEventToPlayer(id, Event{Type: EventGameStatus, Payload: MessagePayload{Message: "The table is full."}})
	}
	s.sendSyncState(id)
	return err
}

// seat adds a player record for id. Assumes lock is held.
func (s *Session) seat(id uuid.UUID) error {
	if s.playerIndex(id) >= 0 {
		return nil
	}
	if s.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	if len(s.Players) >= s.Rules.MaxPlayers {
		return ErrTableFull
	}
	s.Players = append(s.Players, models.NewPlayer(id))
	s.log.WithField("player", id).Info("player seated")
	s.logAction(id, "player_connect", nil)
	return nil
}

// JoinGame sets the display name, seating the connection first if needed.
func (s *Session) JoinGame(id uuid.UUID, name string) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if err := s.seat(id); err != nil {
		msg := "The table is full."
		if errors.Is(err, ErrWrongPhase) {
			msg = "A game is already in progress."
		}
		s.fireEventToPlayer(id, Event{Type: EventJoinGameStatus, Payload: MessagePayload{Message: msg}})
		return err
	}

	p := s.Players[s.playerIndex(id)]
	p.Name = name
	s.logAction(id, "join_game", map[string]interface{}{"name": name})

	s.fireEventToPlayer(id, Event{Type: EventJoinGameStatus, Payload: MessagePayload{Message: fmt.Sprintf("Welcome, %s!", name)}})
	s.broadcastPlayers()
	return nil
}

// PlayerReady marks the player ready and starts the game once everyone is.
func (s *Session) PlayerReady(id uuid.UUID) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	idx := s.playerIndex(id)
	if idx < 0 {
		return ErrUnknownPlayer
	}
	if s.Phase != PhaseLobby {
		return ErrWrongPhase
	}

	s.Players[idx].IsReady = true
	s.logAction(id, "player_ready", nil)
	s.broadcastPlayers()

	if !s.allReady() {
		return nil
	}
	if len(s.Players) < MinPlayers {
		s.broadcastStatus(fmt.Sprintf("At least %d players are needed to start.", MinPlayers))
		return nil
	}
	return s.startGame()
}

// Assumes lock is held.
func (s *Session) allReady() bool {
	for _, p := range s.Players {
		if !p.IsReady {
			return false
		}
	}
	return len(s.Players) > 0
}

// startGame deals a fresh deck and opens the first turn. Assumes lock is held.
func (s *Session) startGame() error {
	s.Deck = NewDeck(s.rng)
	s.DiscardPile = []*models.Card{}
	s.pending = nil

	top, err := s.Deck.Deal(s.Players)
	if err != nil {
		s.log.WithError(err).Error("failed to deal")
		s.resetToLobby()
		return fmt.Errorf("start game: %w", err)
	}
	s.DiscardPile = append(s.DiscardPile, top)

	s.GameID = uuid.New()
	s.CurrentPlayerIndex = 0
	s.Direction = 1
	s.Phase = PhaseInProgress
	s.startedAt = time.Now()

	s.log.WithFields(logrus.Fields{"game": s.GameID, "players": len(s.Players)}).Info("game started")
	s.logAction(uuid.Nil, "game_start", map[string]interface{}{"players": len(s.Players), "starter": top.ID})

	s.fireEvent(Event{
		Type: EventGameStart,
		Payload: GameStartPayload{
			Players:            s.playerViews(),
			CurrentPlayerIndex: s.CurrentPlayerIndex,
			DiscardPile:        s.discardCopy(),
		},
	})
	s.newTurn()
	return nil
}

// Disconnect removes the player. An empty table resets to the lobby; an
// in-progress game hands the leaver's cards back to the deck and repairs the turn pointer.
func (s *Session) Disconnect(id uuid.UUID) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	idx := s.playerIndex(id)
	if idx < 0 {
		return ErrUnknownPlayer
	}
	leaver := s.Players[idx]
	s.Players = append(s.Players[:idx], s.Players[idx+1:]...)
	s.log.WithField("player", id).Info("player left")
	s.logAction(id, "player_disconnect", map[string]interface{}{"seat": idx})

	if len(s.Players) == 0 {
		s.resetToLobby()
		return nil
	}

	if s.Phase == PhaseInProgress {
		s.Deck.PutBottom(leaver.Hand...)
		leaver.Hand = nil

		if len(s.Players) < MinPlayers {
			s.abortGame("Not enough players to continue.")
			return nil
		}
		s.repairTurn(idx, leaver.ID)
	}

	s.broadcastPlayers()
	return nil
}

// repairTurn keeps the turn with the same player after the seat at removed
// disappeared, or passes it on if the leaver held it. Assumes lock is held.
func (s *Session) repairTurn(removed int, leaverID uuid.UUID) {
	if s.pending != nil && s.pending.NextID == leaverID {
		s.pending.NextID = s.Players[s.seatAfter(removed)].ID
	}

	switch {
	case removed < s.CurrentPlayerIndex:
		s.CurrentPlayerIndex--
	case removed == s.CurrentPlayerIndex:
		if s.pending != nil && s.pending.PlayerID == leaverID {
			top := s.topCard()
			top.Color = s.randomColor()
			s.logAction(leaverID, "color_switch_auto", map[string]interface{}{"color": top.Color})
			s.takePendingTurn()
			s.fireEvent(Event{Type: EventColorSwitched, Payload: ColorSwitchedPayload{
				DiscardTopCard:     *top,
				CurrentPlayerIndex: s.CurrentPlayerIndex,
			}})
			return
		}
		s.CurrentPlayerIndex = s.seatAfter(removed)
		s.newTurn()
	}
}

// seatAfter is the seat that follows a just-removed seat in the current
// direction. Seats after it already shifted down by one. Assumes lock is held.
func (s *Session) seatAfter(removed int) int {
	n := len(s.Players)
	if s.Direction > 0 {
		return removed % n
	}
	return (removed - 1 + n) % n
}

// resetToLobby clears the table for a new game, keeping the roster. Assumes lock is held.
func (s *Session) resetToLobby() {
	s.stopTurnTimer()
	s.Phase = PhaseLobby
	s.GameID = uuid.Nil
	s.Deck = NewDeck(s.rng)
	s.DiscardPile = []*models.Card{}
	s.CurrentPlayerIndex = 0
	s.Direction = 1
	s.pending = nil
	for _, p := range s.Players {
		p.Hand = []*models.Card{}
		p.IsReady = false
	}
}

// abortGame ends the game without a winner. Assumes lock is held.
func (s *Session) abortGame(reason string) {
	s.log.WithField("game", s.GameID).Warnf("game aborted: %s", reason)
	s.logAction(uuid.Nil, "game_abort", map[string]interface{}{"reason": reason})
	s.resetToLobby()
	s.broadcastStatus(reason)
	s.broadcastPlayers()
}

// endGame declares winner, reports the result and returns to the lobby. Assumes lock is held.
func (s *Session) endGame(winner *models.Player) {
	result := models.GameResult{
		GameID:    s.GameID,
		SessionID: s.ID,
		WinnerID:  winner.ID,
		Turns:     s.turnID,
		StartedAt: s.startedAt,
		EndedAt:   time.Now(),
	}
	for i, p := range s.Players {
		result.Players = append(result.Players, models.PlayerResult{
			PlayerID: p.ID,
			Name:     p.Name,
			Seat:     i,
			HandSize: len(p.Hand),
			IsWinner: p.ID == winner.ID,
		})
	}

	s.log.WithFields(logrus.Fields{"game": s.GameID, "winner": winner.ID}).Info("game over")
	s.logAction(winner.ID, "game_over", map[string]interface{}{"turns": s.turnID})
	s.fireEvent(Event{
		Type: EventGameOver,
		Payload: GameOverPayload{
			WinnerID:   winner.ID,
			WinnerName: winner.Name,
			Players:    s.playerViews(),
		},
	})
	if s.OnGameEnd != nil {
		s.OnGameEnd(result)
	}

	s.resetToLobby()
	s.broadcastPlayers()
}

// Assumes lock is held.
func (s *Session) playerIndex(id uuid.UUID) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Assumes lock is held.
func (s *Session) topCard() *models.Card {
	if len(s.DiscardPile) == 0 {
		return nil
	}
	return s.DiscardPile[len(s.DiscardPile)-1]
}

// Assumes lock is held.
func (s *Session) randomColor() models.Color {
	return models.SuitColors[s.rng.Intn(len(models.SuitColors))]
}

// logAction queues the action for the historian without blocking the table.
// Records reach ActionLog one at a time in the order they were logged.
// Assumes lock is held.
func (s *Session) logAction(actor uuid.UUID, actionType string, payload map[string]interface{}) {
	s.actionIndex++
	if s.ActionLog == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		SessionID:     s.ID,
		GameID:        s.GameID,
		ActionIndex:   s.actionIndex,
		ActorID:       actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}

	if s.actions == nil {
		s.actions = make(chan cache.GameActionRecord, actionQueueSize)
		go s.publishActions(s.ActionLog, s.actions)
	}
	select {
	case s.actions <- record:
	default:
		s.log.Warnf("action queue full, dropping action %d (%s)", record.ActionIndex, record.ActionType)
	}
}

// publishActions forwards records to pub for the life of the session.
func (s *Session) publishActions(pub ActionPublisher, records <-chan cache.GameActionRecord) {
	for rec := range records {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := pub.PublishGameAction(ctx, rec); err != nil {
			s.log.WithError(err).Warnf("failed to publish action %d (%s)", rec.ActionIndex, rec.ActionType)
		}
		cancel()
	}
}
