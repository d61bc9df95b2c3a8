package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a test double for Client that captures sent messages
type mockClient struct {
	id       string
	topic    string
	messages [][]byte
	mu       sync.Mutex
	closed   bool
}

func newMockClient(id string, topic string) *mockClient {
	return &mockClient{
		id:       id,
		topic:    topic,
		messages: make([][]byte, 0),
	}
}

func (m *mockClient) ID() string {
	return m.id
}

func (m *mockClient) Topic() string {
	return m.topic
}

func (m *mockClient) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClientClosed
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockClient) GetMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([][]byte, len(m.messages))
	copy(copied, m.messages)
	return copied
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	sessionTopic := SessionTopic("abc")

	client1 := newMockClient("client-1", TopicPortfolio)
	client2 := newMockClient("client-2", TopicPortfolio)
	client3 := newMockClient("client-3", sessionTopic)

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	assert.Equal(t, 2, hub.ClientCount(TopicPortfolio))
	assert.Equal(t, 1, hub.ClientCount(sessionTopic))
	assert.Equal(t, 0, hub.ClientCount("session:none"))
	assert.Equal(t, 3, hub.TotalClientCount())

	hub.Unregister(client1)
	assert.Equal(t, 1, hub.ClientCount(TopicPortfolio))

	hub.Unregister(client2)
	hub.Unregister(client3)
	assert.Equal(t, 0, hub.ClientCount(TopicPortfolio))
	assert.Equal(t, 0, hub.ClientCount(sessionTopic))
	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_Broadcast_TopicIsolation(t *testing.T) {
	hub := NewHub()

	dashboardA := newMockClient("dash-a", TopicPortfolio)
	dashboardB := newMockClient("dash-b", TopicPortfolio)
	form := newMockClient("form", SessionTopic("abc"))

	hub.Register(dashboardA)
	hub.Register(dashboardB)
	hub.Register(form)

	hub.Broadcast(TopicPortfolio, LoanCreated(map[string]interface{}{"id": float64(42)}))

	// Give goroutines time to process
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, dashboardA.GetMessages(), 1, "dashboardA should receive 1 message")
	assert.Len(t, dashboardB.GetMessages(), 1, "dashboardB should receive 1 message")
	assert.Len(t, form.GetMessages(), 0, "session subscriber should not receive portfolio events")
}

func TestHub_Broadcast_MultipleFanOut(t *testing.T) {
	hub := NewHub()
	topic := SessionTopic("shared")

	clients := make([]*mockClient, 5)
	for i := 0; i < 5; i++ {
		clients[i] = newMockClient("client-"+string(rune('a'+i)), topic)
		hub.Register(clients[i])
	}

	hub.Broadcast(topic, SessionUpdated(map[string]interface{}{"id": "shared"}))

	time.Sleep(10 * time.Millisecond)

	for i, c := range clients {
		assert.Len(t, c.GetMessages(), 1, "client %d should receive message", i)
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	clientCount := 50
	topics := []string{TopicPortfolio, SessionTopic("1"), SessionTopic("2"), SessionTopic("3"), SessionTopic("4")}

	clients := make([]*mockClient, clientCount)
	for i := 0; i < clientCount; i++ {
		clients[i] = newMockClient(fmt.Sprintf("client-%d", i), topics[i%len(topics)])
	}

	for i := 0; i < clientCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			hub.Register(clients[idx])
		}(i)
	}

	wg.Wait()

	assert.Equal(t, clientCount, hub.TotalClientCount())

	for i := 0; i < clientCount; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			hub.Broadcast(topics[idx%len(topics)], LoanCreated(map[string]interface{}{"id": float64(idx)}))
		}(i)
		go func(idx int) {
			defer wg.Done()
			hub.Unregister(clients[idx])
		}(i)
	}

	wg.Wait()

	for _, topic := range topics {
		assert.Equal(t, 0, hub.ClientCount(topic))
	}
}

func TestHub_UnregisterNonexistent(t *testing.T) {
	hub := NewHub()

	client := newMockClient("client-1", TopicPortfolio)

	require.NotPanics(t, func() {
		hub.Unregister(client)
	})
}

func TestHub_BroadcastToEmptyTopic(t *testing.T) {
	hub := NewHub()

	require.NotPanics(t, func() {
		hub.Broadcast(SessionTopic("nobody"), SessionUpdated(map[string]interface{}{"id": "nobody"}))
	})
}

func TestParseTopic(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
		wantErr  bool
	}{
		{"", TopicPortfolio, false},
		{"portfolio", TopicPortfolio, false},
		{" session:abc ", "session:abc", false},
		{"session:", "", true},
		{"workspace:1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			topic, err := ParseTopic(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTopic)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, topic)
		})
	}
}

func TestHub_CloseTopic(t *testing.T) {
	hub := NewHub()
	session := SessionTopic("abc")

	watcher1 := newMockClient("watcher-1", session)
	watcher2 := newMockClient("watcher-2", session)
	dashboard := newMockClient("dashboard", TopicPortfolio)
	hub.Register(watcher1)
	hub.Register(watcher2)
	hub.Register(dashboard)

	assert.Equal(t, 2, hub.CloseTopic(session, CloseReasonSessionEnded))
	assert.True(t, watcher1.IsClosed())
	assert.True(t, watcher2.IsClosed())
	assert.False(t, dashboard.IsClosed())
	assert.Equal(t, 0, hub.ClientCount(session))
	assert.Equal(t, 1, hub.TotalClientCount())

	assert.Equal(t, 0, hub.CloseTopic(session, CloseReasonSessionEnded))
}
