package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/constants"
	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/gorilla/websocket"
)

const maxClientMessage = 512

// Handler upgrades requests to WebSocket connections and writes every
// published session batch as one JSON text message. Clients only receive.
type Handler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
}

// NewHandler creates a handler for hub.
func NewHandler(hub *Hub, writeTimeout time.Duration) *Handler {
	if writeTimeout <= 0 {
		writeTimeout = constants.DefaultStreamWriteTimeout
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
		writeTimeout: writeTimeout,
		pingInterval: constants.StreamPingInterval,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ch, err := h.hub.Subscribe()
	if err != nil {
		if errors.Is(err, ErrTooManySubscribers) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer h.hub.Unsubscribe(id)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	logger.Info("Stream subscriber connected", "subscriber_id", id, "remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	go h.readLoop(conn, done)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warn("Failed to write to stream subscriber", "subscriber_id", id, "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Debug("Ping to stream subscriber failed", "subscriber_id", id, "error", err)
				return
			}
		case <-done:
			logger.Info("Stream subscriber disconnected", "subscriber_id", id)
			return
		}
	}
}

// readLoop drains client frames so control messages are processed, and
// closes done when the connection goes away.
func (h *Handler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxClientMessage)
	readTimeout := 2 * h.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
