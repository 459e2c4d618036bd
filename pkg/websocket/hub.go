package websocket

import (
	"sync"

	"github.com/pal-ai/gateway/pkg/logger"
	"go.uber.org/zap"
)

// MessageHandler handles a frame read from a client. A non-nil return value
// is sent back to that client.
type MessageHandler func(*Client, *Message) *Message

// Hub groups clients by topic and fans messages out to them
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Client]struct{})}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.topics[c.Topic]
	if !ok {
		clients = make(map[*Client]struct{})
		h.topics[c.Topic] = clients
	}
	clients[c] = struct{}{}
	logger.Debug("websocket client registered", zap.String("client_id", c.ID), zap.String("topic", c.Topic))
}

// unregister is safe to call more than once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.topics[c.Topic]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.topics, c.Topic)
	}
	c.close()
}

// Publish sends msg to every client on topic and returns how many accepted
// it. Clients whose buffers are full are disconnected.
func (h *Hub) Publish(topic string, msg *Message) int {
	var delivered int
	var slow []*Client

	h.mu.RLock()
	for c := range h.topics[topic] {
		if c.enqueue(msg) {
			delivered++
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logger.Warn("dropping slow websocket client", zap.String("client_id", c.ID), zap.String("topic", topic))
		h.unregister(c)
	}
	return delivered
}

// CloseTopic disconnects every client on topic.
func (h *Hub) CloseTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.topics[topic] {
		c.close()
	}
	delete(h.topics, topic)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, clients := range h.topics {
		n += len(clients)
	}
	return n
}

// TopicCount returns the number of topics with at least one client
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}
