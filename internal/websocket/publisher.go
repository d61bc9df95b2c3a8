package websocket

// EventPublisher defines the interface for publishing events to WebSocket clients
type EventPublisher interface {
	// Publish sends an event to all clients subscribed to the topic
	Publish(topic string, event Event)
}

// TopicCloser disconnects every subscriber of a topic
type TopicCloser interface {
	CloseTopic(topic, reason string) int
}

var (
	_ EventPublisher = (*Hub)(nil)
	_ TopicCloser    = (*Hub)(nil)
)

// Publish implements EventPublisher by broadcasting the event to the topic
func (h *Hub) Publish(topic string, event Event) {
	h.Broadcast(topic, event)
}

// NoOpPublisher is a publisher that does nothing (for tests and the CLI)
type NoOpPublisher struct{}

// Publish does nothing
func (n *NoOpPublisher) Publish(topic string, event Event) {}
