package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single event push so one stuck client cannot
// wedge a control handler.
const writeTimeout = 10 * time.Second

// wsClient wraps a WebSocket connection as a registry.ControlHandle.
// Pushes from the relay-facing broadcast path and from the connection's
// own read loop are serialized by the mutex; gorilla/websocket allows
// only one concurrent writer.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn}
}

// Push delivers one named event to the connection.
func (c *wsClient) Push(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(outboundEnvelope{Event: event, Data: data})
}

// Close tears down the underlying connection.
func (c *wsClient) Close() error {
	return c.conn.Close()
}
