package websocket

import (
	"errors"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned when attempting to send to a closed client
var ErrClientClosed = errors.New("client is closed")

// ErrInvalidTopic is returned for subscriptions to a topic the hub does not serve
var ErrInvalidTopic = errors.New("invalid topic")

// TopicPortfolio carries loan and client events for every dashboard
const TopicPortfolio = "portfolio"

const sessionTopicPrefix = "session:"

// SessionTopic is the topic a single form session publishes its state on
func SessionTopic(sessionID string) string {
	return sessionTopicPrefix + sessionID
}

// ParseTopic validates a subscription request. Empty means TopicPortfolio.
func ParseTopic(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == TopicPortfolio:
		return TopicPortfolio, nil
	case strings.HasPrefix(raw, sessionTopicPrefix) && len(raw) > len(sessionTopicPrefix):
		return raw, nil
	}
	return "", ErrInvalidTopic
}

// ClientInterface defines the interface that clients must implement
type ClientInterface interface {
	ID() string
	Topic() string
	Send(data []byte) error
	Close() error
}

// Hub manages WebSocket connections organized by topic
// It is safe for concurrent use
type Hub struct {
	// topics maps topic to a map of client ID to client
	topics map[string]map[string]ClientInterface
	mu     sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[string]ClientInterface),
	}
}

// Register adds a client to the hub under its topic
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic := client.Topic()
	clientID := client.ID()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]ClientInterface)
	}

	h.topics[topic][clientID] = client

	log.Debug().
		Str("topic", topic).
		Str("client_id", clientID).
		Msg("WebSocket client registered")
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic := client.Topic()
	clientID := client.ID()

	if clients, ok := h.topics[topic]; ok {
		if _, exists := clients[clientID]; exists {
			delete(clients, clientID)

			if len(clients) == 0 {
				delete(h.topics, topic)
			}

			log.Debug().
				Str("topic", topic).
				Str("client_id", clientID).
				Msg("WebSocket client unregistered")
		}
	}
}

// Broadcast sends an event to all clients subscribed to a topic
func (h *Hub) Broadcast(topic string, event Event) {
	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	h.mu.RLock()
	clients, ok := h.topics[topic]
	if !ok || len(clients) == 0 {
		h.mu.RUnlock()
		return
	}

	// Copy clients to avoid holding lock during send
	clientsCopy := make([]ClientInterface, 0, len(clients))
	for _, client := range clients {
		clientsCopy = append(clientsCopy, client)
	}
	h.mu.RUnlock()

	for _, client := range clientsCopy {
		go func(c ClientInterface) {
			if err := c.Send(data); err != nil {
				log.Warn().
					Err(err).
					Str("topic", topic).
					Str("client_id", c.ID()).
					Msg("Failed to send to client")
			}
		}(client)
	}

	log.Debug().
		Str("topic", topic).
		Str("event_type", event.Type).
		Int("client_count", len(clientsCopy)).
		Msg("Broadcast event")
}

type disconnecter interface {
	Disconnect(code int, reason string) error
}

// CloseTopic unsubscribes every client of a topic and closes it with reason.
// It returns how many clients were disconnected.
func (h *Hub) CloseTopic(topic, reason string) int {
	h.mu.Lock()
	clients := h.topics[topic]
	delete(h.topics, topic)
	h.mu.Unlock()

	for _, client := range clients {
		if d, ok := client.(disconnecter); ok {
			d.Disconnect(websocket.CloseNormalClosure, reason)
			continue
		}
		client.Close()
	}

	if len(clients) > 0 {
		log.Debug().
			Str("topic", topic).
			Str("reason", reason).
			Int("client_count", len(clients)).
			Msg("Closed topic")
	}
	return len(clients)
}

// ClientCount returns the number of clients subscribed to a topic
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.topics[topic]; ok {
		return len(clients)
	}
	return 0
}

// TotalClientCount returns the total number of connected clients across all topics
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.topics {
		total += len(clients)
	}
	return total
}
