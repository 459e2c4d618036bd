package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *Hub, handler MessageHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := hub.Serve(w, r, r.URL.Query().Get("client"), r.URL.Query().Get("topic"), handler)
		if err != nil {
			t.Logf("serve: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, client, topic string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?client=" + client + "&topic=" + topic
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage("route", "nav-1", map[string]int{"sequence": 3})
	require.NoError(t, err)

	assert.Equal(t, "route", msg.Type)
	assert.Equal(t, "nav-1", msg.Topic)
	assert.False(t, msg.Timestamp.IsZero())
	assert.JSONEq(t, `{"sequence":3}`, string(msg.Data))

	empty, err := NewMessage("ended", "nav-1", nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Data)

	_, err = NewMessage("bad", "nav-1", make(chan int))
	assert.Error(t, err)
}

func TestHubPublishesToTopic(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub, nil)

	a := dial(t, srv, "farmer-a", "nav-1")
	b := dial(t, srv, "farmer-b", "nav-1")
	other := dial(t, srv, "farmer-c", "nav-2")
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, hub.TopicCount())

	msg, err := NewMessage("route", "nav-1", map[string]string{"polyline": "_p~iF~ps|U"})
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Publish("nav-1", msg))

	for _, conn := range []*websocket.Conn{a, b} {
		got := readMessage(t, conn)
		assert.Equal(t, "route", got.Type)
		assert.Equal(t, "nav-1", got.Topic)
		assert.JSONEq(t, `{"polyline":"_p~iF~ps|U"}`, string(got.Data))
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)

	assert.Zero(t, hub.Publish("nav-missing", msg))
}

func TestHubCloseTopic(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub, nil)

	conn := dial(t, srv, "farmer-a", "nav-1")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.CloseTopic("nav-1")
	assert.Zero(t, hub.TopicCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
}

func TestHubHandlerReplies(t *testing.T) {
	hub := NewHub()
	received := make(chan *Message, 1)
	srv := newTestServer(t, hub, func(c *Client, msg *Message) *Message {
		received <- msg
		reply, _ := NewMessage("ack", c.Topic, nil)
		return reply
	})

	conn := dial(t, srv, "farmer-a", "nav-1")
	require.NoError(t, conn.WriteJSON(Message{Type: "position", Data: json.RawMessage(`{"latitude":14.6}`)}))

	select {
	case msg := <-received:
		assert.Equal(t, "position", msg.Type)
		assert.Equal(t, "nav-1", msg.Topic)
		assert.JSONEq(t, `{"latitude":14.6}`, string(msg.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}

	assert.Equal(t, "ack", readMessage(t, conn).Type)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub, nil)

	conn := dial(t, srv, "farmer-a", "nav-1")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestClientSendAfterClose(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub, nil)

	dial(t, srv, "farmer-a", "nav-1")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	var client *Client
	hub.mu.RLock()
	for c := range hub.topics["nav-1"] {
		client = c
	}
	hub.mu.RUnlock()
	require.NotNil(t, client)

	hub.CloseTopic("nav-1")
	msg, _ := NewMessage("route", "nav-1", nil)
	assert.False(t, client.Send(msg))
}

func TestServeRejectsPlainHTTP(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub, nil)

	resp, err := http.Get(srv.URL + "/?client=a&topic=nav-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, hub.ClientCount())
}
