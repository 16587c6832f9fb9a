// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"net/http"

	mw "github.com/Ahlecss/Gobeluno-server/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

// Greeting is the body of GET /.
const Greeting = "Hello, World, ça marche !"

const qrSize = 320

// NewRouter mounts the HTTP surface: greeting, websocket, table snapshot, QR code and heartbeat.
func NewRouter(logger *logrus.Logger, gs *GameServer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(mw.LogMiddleware(logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   gs.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(Greeting))
	})
	r.Get("/ws", GameWSHandler(logger, gs))
	r.Get("/state", gs.handleState)
	r.Get("/qr", gs.handleQR)
	return r
}

// handleState returns the table as an unseated observer sees it.
func (gs *GameServer) handleState(w http.ResponseWriter, r *http.Request) {
	st := gs.Session.State(uuid.Nil)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		gs.logger.WithError(err).Warn("failed to encode state")
	}
}

// handleQR renders a PNG QR code pointing at the client, falling back to this host.
func (gs *GameServer) handleQR(w http.ResponseWriter, r *http.Request) {
	url := gs.opts.ClientURL
	if url == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		url = scheme + "://" + r.Host + "/"
	}

	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
