package websocket

import (
	"time"

	"dating-app/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// PresenceClient is one live connection on the presence channel. Clients
// send nothing meaningful here; the read pump exists to detect disconnects.
type PresenceClient struct {
	hub          *PresenceHub
	conn         *websocket.Conn
	send         chan []byte
	connectionID string
	username     string
}

func NewPresenceClient(hub *PresenceHub, conn *websocket.Conn, username string) *PresenceClient {
	return &PresenceClient{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		connectionID: uuid.NewString(),
		username:     username,
	}
}

func (c *PresenceClient) ConnectionID() string {
	return c.connectionID
}

func (c *PresenceClient) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			break
		}
		// Inbound frames are ignored; presence is connection lifecycle only.
	}
}

func (c *PresenceClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
