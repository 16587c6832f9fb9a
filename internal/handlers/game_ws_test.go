// internal/handlers/game_ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/game"
	"github.com/Ahlecss/Gobeluno-server/internal/models"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type recordedResults struct {
	results chan models.GameResult
}

func (r *recordedResults) RecordGameResult(_ context.Context, result models.GameResult) error {
	r.results <- result
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T) (*httptest.Server, *GameServer) {
	t.Helper()
	logger := quietLogger()
	session := game.NewSession(logger, game.DefaultHouseRules())
	gs := NewGameServer(logger, session, nil, DefaultOptions())
	srv := httptest.NewServer(NewRouter(logger, gs))
	t.Cleanup(srv.Close)
	return srv, gs
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func send(t *testing.T, c *websocket.Conn, msg interface{}) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, c *websocket.Conn, typ string) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err, "waiting for %s", typ)
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == typ {
			return f
		}
	}
}

func TestHTTPRoutes(t *testing.T) {
	srv, gs := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, Greeting, string(body))

	resp, err = http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/qr")
	require.NoError(t, err)
	png, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))

	resp, err = http.Get(srv.URL + "/state")
	require.NoError(t, err)
	var st struct {
		Phase    string `json:"phase"`
		DeckSize int    `json:"deckSize"`
		Seated   bool   `json:"seated"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.Equal(t, "lobby", st.Phase)
	assert.Equal(t, game.UniverseSize, st.DeckSize)
	assert.False(t, st.Seated)

	a, b := uuid.New(), uuid.New()
	require.NoError(t, gs.Session.Connect(a))
	require.NoError(t, gs.Session.Connect(b))
	require.NoError(t, gs.Session.PlayerReady(a))
	require.NoError(t, gs.Session.PlayerReady(b))

	resp, err = http.Get(srv.URL + "/state")
	require.NoError(t, err)
	var live game.SyncState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&live))
	resp.Body.Close()
	assert.Equal(t, game.PhaseInProgress, live.Phase)
	require.Len(t, live.Players, 2)
	for _, p := range live.Players {
		assert.Empty(t, p.Hand, "hands are private")
		assert.Equal(t, game.HandSize, p.HandSize)
	}
}

func TestConnectReceivesSyncState(t *testing.T) {
	srv, gs := newTestServer(t)
	c := dial(t, srv)

	f := readUntil(t, c, string(game.EventSyncState))
	var st game.SyncState
	require.NoError(t, json.Unmarshal(f.Payload, &st))
	assert.True(t, st.Seated)
	assert.Equal(t, gs.Session.ID, st.SessionID)
	assert.Len(t, st.Players, 1)
}

func TestTwoPlayersStartGame(t *testing.T) {
	srv, gs := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)
	readUntil(t, alice, string(game.EventSyncState))
	readUntil(t, bob, string(game.EventSyncState))

	send(t, alice, ClientMessage{Type: "joinGame", Name: "Alice"})
	f := readUntil(t, alice, string(game.EventJoinGameStatus))
	assert.Contains(t, string(f.Payload), "Welcome, Alice!")
	send(t, bob, ClientMessage{Type: "joinGame", Name: "  Bob "})
	readUntil(t, bob, string(game.EventJoinGameStatus))

	send(t, alice, ClientMessage{Type: "playerReady"})
	send(t, bob, ClientMessage{Type: "playerReady"})

	for _, c := range []*websocket.Conn{alice, bob} {
		f := readUntil(t, c, string(game.EventGameStart))
		var start game.GameStartPayload
		require.NoError(t, json.Unmarshal(f.Payload, &start))
		assert.Equal(t, 0, start.CurrentPlayerIndex)
		require.Len(t, start.Players, 2)
		assert.Equal(t, "Alice", start.Players[0].Name)
		assert.Equal(t, "Bob", start.Players[1].Name)
		assert.Len(t, start.Players[0].Hand, game.HandSize)
		assert.Len(t, start.DiscardPile, 1)
	}

	st := gs.Session.State(gs.Session.ID)
	assert.Equal(t, game.PhaseInProgress, st.Phase)
	assert.Equal(t, game.UniverseSize-2*game.HandSize-1, st.DeckSize)

	// Alice's draw reaches both players.
	send(t, alice, ClientMessage{Type: "drawCard"})
	for _, c := range []*websocket.Conn{alice, bob} {
		f := readUntil(t, c, string(game.EventCardDrawn))
		var drawn game.CardDrawnPayload
		require.NoError(t, json.Unmarshal(f.Payload, &drawn))
		assert.Equal(t, 1, drawn.CurrentPlayerIndex)
	}

	// Alice leaving stops the game for Bob.
	alice.Close(websocket.StatusNormalClosure, "bye")
	f = readUntil(t, bob, string(game.EventGameStatus))
	assert.Contains(t, string(f.Payload), "Not enough players")
	require.Eventually(t, func() bool { return gs.Hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestMalformedAndUnknownMessages(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv)
	readUntil(t, c, string(game.EventSyncState))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{not json")))
	f := readUntil(t, c, string(EventError))
	assert.Contains(t, string(f.Payload), "Invalid JSON format.")

	send(t, c, ClientMessage{Type: "teleport"})
	f = readUntil(t, c, string(EventError))
	assert.Contains(t, string(f.Payload), "unknown message type")

	send(t, c, ClientMessage{Type: "playCard"})
	f = readUntil(t, c, string(EventError))
	assert.Contains(t, string(f.Payload), "without a card")

	send(t, c, ClientMessage{Type: "ping"})
	readUntil(t, c, string(EventPong))
}

func TestGameResultIsRecorded(t *testing.T) {
	logger := quietLogger()
	session := game.NewSession(logger, game.DefaultHouseRules())
	store := &recordedResults{results: make(chan models.GameResult, 1)}
	NewGameServer(logger, session, store, DefaultOptions())

	session.Mu.Lock()
	require.NotNil(t, session.OnGameEnd)
	session.OnGameEnd(models.GameResult{Turns: 3})
	session.Mu.Unlock()

	select {
	case r := <-store.results:
		assert.Equal(t, 3, r.Turns)
	case <-time.After(2 * time.Second):
		t.Fatal("result was not recorded")
	}
}
