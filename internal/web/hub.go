package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub broadcasts lifecycle events to websocket clients. Events are dropped
// when the broadcast buffer is full so publishers never block.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	lock      sync.Mutex
	logger    *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
		logger:    logger,
	}
}

type eventMessage struct {
	Type      domain.EventType `json:"type"`
	Strategy  string           `json:"strategy"`
	Symbol    string           `json:"symbol"`
	Backtest  bool             `json:"backtest"`
	Price     float64          `json:"price"`
	Timestamp time.Time        `json:"timestamp"`
	Level     int              `json:"level,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	PnL       *domain.PnL      `json:"pnl,omitempty"`
	Signal    *domain.Signal   `json:"signal,omitempty"`
}

// Publish is an EventBus listener. Per-tick active events are skipped.
func (h *Hub) Publish(ev domain.Event) {
	if ev.Type == domain.EventActive {
		return
	}
	msg, err := json.Marshal(eventMessage{
		Type:      ev.Type,
		Strategy:  ev.Strategy,
		Symbol:    ev.Symbol,
		Backtest:  ev.Backtest,
		Price:     ev.Price,
		Timestamp: ev.Timestamp,
		Level:     ev.Level,
		Reason:    ev.Reason,
		PnL:       ev.PnL,
		Signal:    ev.Signal,
	})
	if err != nil {
		h.logger.Error("Failed to encode event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Dropping event, broadcast buffer full", zap.String("type", string(ev.Type)))
	}
}

// Run delivers queued messages until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.lock.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.lock.Unlock()
			return
		case message := <-h.broadcast:
			h.lock.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.lock.Unlock()
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WS upgrade failed", zap.Error(err))
		return
	}
	h.lock.Lock()
	h.clients[conn] = true
	h.lock.Unlock()

	// Drain client frames so close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.lock.Lock()
				if h.clients[conn] {
					conn.Close()
					delete(h.clients, conn)
				}
				h.lock.Unlock()
				return
			}
		}
	}()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}
