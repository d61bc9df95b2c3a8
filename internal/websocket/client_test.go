package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// serveTopic upgrades every request into a pumped client subscribed to topic
func serveTopic(t *testing.T, hub *Hub, topic string) (*httptest.Server, <-chan *Client) {
	t.Helper()
	registered := make(chan *Client, 1)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, topic, hub)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
		registered <- client
	}))
	return server, registered
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestClient_PumpsDeliverAndShutDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	server, registered := serveTopic(t, hub, TopicPortfolio)
	defer server.Close()

	conn := dial(t, server)
	client := <-registered
	assert.Empty(t, client.SessionID())
	assert.Equal(t, TopicPortfolio, client.Topic())
	assert.NotEmpty(t, client.ID())
	assert.Equal(t, 1, hub.ClientCount(TopicPortfolio))

	hub.Publish(TopicPortfolio, LoanCreated(map[string]interface{}{"id": float64(9)}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"loan.created"`)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return hub.ClientCount(TopicPortfolio) == 0 && client.IsClosed()
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, client.Send([]byte("late")), ErrClientClosed)
}

func TestClient_SessionClosedWithReason(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	topic := SessionTopic("s-42")
	server, registered := serveTopic(t, hub, topic)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	client := <-registered
	assert.Equal(t, "s-42", client.SessionID())

	assert.Equal(t, 1, hub.CloseTopic(topic, CloseReasonSessionEnded))
	assert.Zero(t, hub.ClientCount(topic))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, CloseReasonSessionEnded, closeErr.Text)

	assert.True(t, client.IsClosed())
	assert.ErrorIs(t, client.Send([]byte("late")), ErrClientClosed)
	assert.Zero(t, hub.CloseTopic(topic, CloseReasonSessionEnded))
}

func TestClient_SlowSubscriberDisconnected(t *testing.T) {
	hub := NewHub()
	// No pumps run, so the buffer is never drained
	client := NewClient(nil, TopicPortfolio, hub)

	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, client.Send([]byte("event")))
	}
	assert.ErrorIs(t, client.Send([]byte("one too many")), ErrClientClosed)
	assert.True(t, client.IsClosed())
	assert.Equal(t, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"), client.closeFrame())
}
