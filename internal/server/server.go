// Package server exposes the signaling hub over HTTP: the websocket
// message channel, the TURN credential endpoint, and a health check.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parley/internal/protocol"
	"parley/internal/signaling"
	"parley/internal/turnrest"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Signaling is room-token based; any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler builds the router. The TURN generator is optional; without it
// /turn answers 404.
func Handler(hub *signaling.Hub, turn *turnrest.Generator) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/healthz", handleHealth)
	r.Get("/ws", serveWs(hub))
	if turn != nil {
		r.Get("/turn", serveTURN(turn))
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// serveWs upgrades the connection, assigns the participant its
// connection identifier and hands the pumps to the hub.
func serveWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "err", err)
			return
		}

		client := &signaling.Client{
			Hub:  hub,
			Conn: conn,
			ID:   uuid.NewString(),
			Send: make(chan *protocol.Envelope, 256),
		}

		client.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}

func serveTURN(gen *turnrest.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, err := gen.GenerateRandom()
		if err != nil {
			slog.Error("TURN credential generation failed", "err", err)
			http.Error(w, "credential generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(creds); err != nil {
			slog.Warn("write TURN credentials", "err", err)
		}
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Info("request",
			"method", r.Method,
			"uri", r.RequestURI,
			"status", ww.Status(),
			"from", r.RemoteAddr)
	})
}
