// Package hub fans camera frames and Pokédex events out to dashboard
// websockets. One goroutine owns the client set; everything else talks to it
// over channels.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Kind says what a Message carries and how it travels on the wire.
type Kind int

const (
	// KindFrame is a JPEG camera frame, sent as a binary message.
	KindFrame Kind = iota
	// KindEvent is a JSON sighting or cycle event, sent as text.
	KindEvent
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindEvent:
		return "event"
	}
	return "unknown"
}

// Message is one broadcast payload.
type Message struct {
	Kind    Kind
	Payload []byte
}

// NewFrame wraps JPEG bytes.
func NewFrame(jpeg []byte) Message {
	return Message{Kind: KindFrame, Payload: jpeg}
}

// NewEvent encodes v as a JSON event.
func NewEvent(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindEvent, Payload: data}, nil
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Name for logging
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Guards clients for ClientCount
	mu sync.RWMutex

	running atomic.Bool
	done    chan struct{}
}

// New creates a new Hub
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, closing
// every client. Call it in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it rather than stall everyone else
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client", "kind", message.Kind)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues msg for every connected client. When the queue is full the
// message is dropped.
func (h *Hub) Publish(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message", "kind", msg.Kind)
	}
}

// PublishFrame queues a JPEG frame.
func (h *Hub) PublishFrame(jpeg []byte) {
	h.Publish(NewFrame(jpeg))
}

// PublishEvent encodes and queues a JSON event.
func (h *Hub) PublishEvent(v any) error {
	msg, err := NewEvent(v)
	if err != nil {
		return err
	}
	h.Publish(msg)
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
