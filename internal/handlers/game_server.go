// internal/handlers/game_server.go
package handlers

import (
	"context"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/game"
	"github.com/Ahlecss/Gobeluno-server/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ResultStore persists finished games, e.g. database.Store.
type ResultStore interface {
	RecordGameResult(ctx context.Context, result models.GameResult) error
}

// Options tune the transport around the session.
type Options struct {
	AllowedOrigins []string   // websocket origin patterns, "*" for any
	RateLimit      rate.Limit // inbound messages per second per connection
	RateBurst      int
	ClientURL      string // encoded by GET /qr
}

// DefaultOptions allows any origin and 10 messages per second with bursts of 10.
func DefaultOptions() Options {
	return Options{
		AllowedOrigins: []string{"*"},
		RateLimit:      rate.Every(100 * time.Millisecond),
		RateBurst:      10,
	}
}

// GameServer owns the single shared session and the hub broadcasting its events.
type GameServer struct {
	Session *game.Session
	Hub     *Hub
	Results ResultStore

	opts   Options
	logger *logrus.Logger
}

// NewGameServer wires the session's outbound callbacks to a fresh hub.
// results may be nil to skip persistence.
func NewGameServer(logger *logrus.Logger, session *game.Session, results ResultStore, opts Options) *GameServer {
	gs := &GameServer{
		Session: session,
		Hub:     NewHub(logger),
		Results: results,
		opts:    opts,
		logger:  logger,
	}

	session.Mu.Lock()
	session.BroadcastFn = gs.Hub.Broadcast
	session.BroadcastToPlayerFn = gs.Hub.SendTo
	if results != nil {
		session.OnGameEnd = gs.recordResult
	}
	session.Mu.Unlock()
	return gs
}

// recordResult runs with the session lock held, so the write happens off-thread.
func (gs *GameServer) recordResult(result models.GameResult) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := gs.Results.RecordGameResult(ctx, result); err != nil {
			gs.logger.WithError(err).WithField("game", result.GameID).Error("failed to store game result")
			return
		}
		gs.logger.WithField("game", result.GameID).Info("stored game result")
	}()
}
