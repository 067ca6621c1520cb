// Package ws streams ingested records to websocket subscribers.
//
// Each connection is registered with the broadcaster on upgrade and
// unregistered exactly once, whether the client closes, a write fails, or
// the broadcaster evicts the subscription. The server pushes LogRecord
// frames and periodic pings; nothing the client sends carries application
// meaning.
package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shepherdlog/shepherd/internal/domain/broadcast"
	"github.com/shepherdlog/shepherd/internal/infrastructure/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Handler manages websocket subscriber connections.
type Handler struct {
	bcast  *broadcast.Broadcaster
	logger *logging.Logger
}

// NewHandler creates a new websocket handler.
func NewHandler(b *broadcast.Broadcaster, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{bcast: b, logger: logger}
}

// HandleConnection upgrades the request and streams broadcast records to
// the peer until it disconnects or falls behind.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.bcast.Register()
	defer h.bcast.Unregister(sub)

	h.logger.Info("subscriber connected",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("remote", conn.RemoteAddr().String()),
	)
	defer h.logger.Info("subscriber disconnected",
		zap.String("subscription_id", sub.ID.String()),
	)

	// The read side only keeps liveness honest and notices disconnects.
	readClosed := make(chan struct{})
	go h.readLoop(conn, readClosed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case rec := <-sub.Records():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(rec); err != nil {
				h.logger.Debug("subscriber write failed",
					zap.String("subscription_id", sub.ID.String()),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Done():
			// Evicted by the broadcaster for falling behind.
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"))
			return
		case <-readClosed:
			return
		}
	}
}

// readLoop drains inbound frames until the connection dies. Subscribers
// send nothing of application significance; pongs refresh the read
// deadline.
func (h *Handler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
