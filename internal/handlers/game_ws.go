// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/game"
	"github.com/Ahlecss/Gobeluno-server/internal/middleware"
	"github.com/Ahlecss/Gobeluno-server/internal/models"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Transport-level frames; everything else comes from the session.
const (
	EventError game.EventType = "error"
	EventPong  game.EventType = "pong"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

var (
	errUnknownMessage = errors.New("unknown message type")
	errMissingCard    = errors.New("playCard without a card")
)

// ClientMessage is any inbound frame. Only the fields relevant to Type are read.
type ClientMessage struct {
	Type  string       `json:"type"`
	Name  string       `json:"name,omitempty"`
	Card  *models.Card `json:"card,omitempty"`
	Color models.Color `json:"color,omitempty"`
}

// GameWSHandler upgrades the request, registers the connection with the hub and
// the session, and runs the read loop until the client goes away.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: gs.opts.AllowedOrigins,
		})
		if err != nil {
			logger.Warnf("websocket accept error from %s: %v", r.RemoteAddr, err)
			return
		}
		defer c.CloseNow()

		if r.Header.Get("Sec-WebSocket-Protocol") != "" && c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the "+Subprotocol+" subprotocol")
			return
		}

		id := uuid.New()
		log := logger.WithFields(logrus.Fields{"conn": id, "remote": r.RemoteAddr})
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := NewConnection(id, cancel)
		gs.Hub.Add(conn)

		done := make(chan struct{})
		go func() {
			defer close(done)
			writePump(ctx, c, conn, log)
		}()

		if err := gs.Session.Connect(id); err != nil {
			log.WithError(err).Info("connected without a seat")
		}

		readErr := readPump(ctx, c, gs, conn, log)

		gs.Hub.Remove(id)
		if err := gs.Session.Disconnect(id); err != nil && !errors.Is(err, game.ErrUnknownPlayer) {
			log.WithError(err).Warn("disconnect cleanup failed")
		}
		cancel()
		<-done
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readPump reads frames until the connection fails and returns the cause,
// nil for a normal close.
func readPump(ctx context.Context, c *websocket.Conn, gs *GameServer, conn *Connection, log *logrus.Entry) error {
	limit := gs.opts.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := gs.opts.RateBurst
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			log.Debugf("ignoring non-text frame of type %v", typ)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithError(err).Debug("invalid JSON from client")
			sendError(gs.Hub, conn.ID, "Invalid JSON format.")
			continue
		}

		err = gs.dispatch(conn.ID, msg)
		switch {
		case err == nil:
		case errors.Is(err, errUnknownMessage), errors.Is(err, errMissingCard):
			sendError(gs.Hub, conn.ID, err.Error())
		case errors.Is(err, game.ErrUnknownPlayer):
			log.WithError(err).Warnf("rejected %s", msg.Type)
		case errors.Is(err, game.ErrNoCardsToDraw):
			log.WithError(err).Error("game aborted")
		default:
			log.WithError(err).Debugf("rejected %s", msg.Type)
		}
	}
}

// writePump drains the connection's outbox and keeps it alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *Connection, log *logrus.Entry) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if conn.slow.Load() {
				c.Close(SlowConsumerError, "too far behind")
			}
			return

		case data := <-conn.OutChan:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.WithError(err).Debug("write failed, closing connection")
				conn.Cancel()
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.WithError(err).Debug("ping failed, closing connection")
				conn.Cancel()
				return
			}
		}
	}
}

// dispatch routes one inbound message to the session.
func (gs *GameServer) dispatch(id uuid.UUID, msg ClientMessage) error {
	switch msg.Type {
	case "joinGame":
		return gs.Session.JoinGame(id, strings.TrimSpace(msg.Name))
	case "playerReady":
		return gs.Session.PlayerReady(id)
	case "playCard":
		if msg.Card == nil {
			return errMissingCard
		}
		return gs.Session.PlayCard(id, msg.Card.ID)
	case "colorSwitch":
		return gs.Session.ColorSwitch(id, msg.Color)
	case "drawCard":
		return gs.Session.DrawCard(id)
	case "ping":
		gs.Hub.SendTo(id, game.Event{Type: EventPong})
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownMessage, msg.Type)
	}
}

func sendError(h *Hub, id uuid.UUID, message string) {
	h.SendTo(id, game.Event{Type: EventError, Payload: game.MessagePayload{Message: message}})
}
