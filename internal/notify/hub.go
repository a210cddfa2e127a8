// internal/notify/hub.go
// Package notify рассылает доменные события подключенным WebSocket-клиентам.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// Message - конверт, который получает клиент.
type Message struct {
	Event   events.EventType `json:"event"`
	Payload events.Event     `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub держит набор клиентов и транслирует им события шины.
type Hub struct {
	upgrader websocket.Upgrader
	emitter  events.Emitter
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub создает хаб. emitter используется для connectionUpdated.
func NewHub(emitter events.Emitter, logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		emitter: emitter,
		logger:  logger.Named("notify"),
		clients: make(map[*client]struct{}),
	}
}

var _ events.Handler = (*Hub)(nil)

// Handle рассылает событие всем клиентам. Медленные клиенты отключаются.
func (h *Hub) Handle(_ context.Context, event events.Event) error {
	data, err := json.Marshal(Message{Event: event.Type(), Payload: event})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Client too slow, dropping connection",
				zap.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
	return nil
}

// Count возвращает число подключенных клиентов.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP апгрейдит соединение и держит его до отключения клиента.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Client connected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("clients", count))
	h.emitCount(count)

	go h.writePump(c)
	h.readPump(c)

	h.mu.Lock()
	removed := h.removeLocked(c)
	count = len(h.clients)
	h.mu.Unlock()

	if removed {
		h.logger.Info("Client disconnected", zap.Int("clients", count))
	}
	h.emitCount(count)
}

// Close отключает всех клиентов.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) emitCount(count int) {
	if h.emitter == nil {
		return
	}
	h.emitter.Emit(events.ConnectionUpdatedEvent{
		BaseEvent: events.NewBase(events.ConnectionUpdated),
		Count:     count,
	})
}

// removeLocked вызывается под h.mu.
func (h *Hub) removeLocked(c *client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	return true
}

// readPump читает входящие кадры только ради ping/pong и закрытия.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
