package websocket

import (
	"sync"

	"dutch-auction-system/pkg/logger"

	"github.com/gorilla/websocket"
)

// WebSocketConnection wraps one viewer's connection. Writes are
// serialized with a mutex because gorilla/websocket allows only one
// concurrent writer.
type WebSocketConnection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	writeMu   sync.Mutex
	log       logger.Logger
}

func NewWebSocketConnection(conn *websocket.Conn, userID, auctionID string, log logger.Logger) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
		log:       log,
	}
}

func (c *WebSocketConnection) Send(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if raw, ok := message.([]byte); ok {
		return c.conn.WriteMessage(websocket.TextMessage, raw)
	}
	return c.conn.WriteJSON(message)
}

func (c *WebSocketConnection) Close() error {
	return c.conn.Close()
}

func (c *WebSocketConnection) UserID() string    { return c.userID }
func (c *WebSocketConnection) AuctionID() string { return c.auctionID }

func (c *WebSocketConnection) ReadJSON(v interface{}) error {
	return c.conn.ReadJSON(v)
}
