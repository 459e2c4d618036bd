package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pal-ai/gateway/pkg/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Position fixes are small; anything larger is a misbehaving client.
	maxMessageSize = 16 * 1024

	sendBufferSize = 32
)

// Message is the envelope for every frame in either direction
type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals data into a message for topic.
func NewMessage(msgType, topic string, data interface{}) (*Message, error) {
	msg := &Message{Type: msgType, Topic: topic, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// Client is one subscriber connection
type Client struct {
	ID    string
	Topic string

	conn *websocket.Conn
	hub  *Hub
	send chan *Message

	// closed is guarded by hub.mu.
	closed bool
}

func newClient(id, topic string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:    id,
		Topic: topic,
		conn:  conn,
		hub:   hub,
		send:  make(chan *Message, sendBufferSize),
	}
}

// Send queues msg for delivery. It reports false when the client has
// disconnected or its buffer is full.
func (c *Client) Send(msg *Message) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return false
	}
	return c.enqueue(msg)
}

func (c *Client) enqueue(msg *Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close must be called with hub.mu held for writing.
func (c *Client) close() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump(handler MessageHandler) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		if handler == nil {
			continue
		}

		msg.Topic = c.Topic
		msg.Timestamp = time.Now().UTC()
		if reply := handler(c, &msg); reply != nil {
			c.Send(reply)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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
