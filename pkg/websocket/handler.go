package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Serve upgrades the request and subscribes the connection to topic. The
// pumps run on their own goroutines; the returned client can be used to send
// an initial message.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, clientID, topic string, handler MessageHandler) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	client := newClient(clientID, topic, conn, h)
	h.register(client)

	go client.writePump()
	go client.readPump(handler)

	return client, nil
}
