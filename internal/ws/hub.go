package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/wiltort/bot-constructor/bot/runtime"
	"github.com/wiltort/bot-constructor/internal/lib/sl"
)

const (
	EventBotStatus      = "bot_status"
	EventBotUnreachable = "bot_unreachable"
)

// Event represents a WebSocket event sent to operator clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Unreachable is the payload of a failed health check.
type Unreachable struct {
	BotID string `json:"bot_id"`
	Error string `json:"error"`
}

// Hub maintains the set of active WebSocket clients and broadcasts events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With(sl.Module("ws.hub")),
	}
}

// Run starts the hub's event loop. It returns when ctx is cancelled,
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Warn("failed to encode event", slog.String("type", event.Type), sl.Err(err))
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for all clients. Events are dropped when the
// hub is backed up so that callers never block.
func (h *Hub) Broadcast(event *Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("broadcast queue full, event dropped", slog.String("type", event.Type))
	}
}

// PublishStatus is a runtime.StatusListener.
func (h *Hub) PublishStatus(status runtime.Status) {
	h.Broadcast(&Event{
		Type: EventBotStatus,
		Data: status,
	})
}

// PublishUnreachable reports a bot whose transport failed a health check.
func (h *Hub) PublishUnreachable(botID string, err error) {
	h.Broadcast(&Event{
		Type: EventBotUnreachable,
		Data: Unreachable{
			BotID: botID,
			Error: err.Error(),
		},
	})
}
