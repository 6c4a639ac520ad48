package network

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/messages"
	"github.com/gorilla/websocket"
)

// ServerMessage is a frame received from the server, tagged with its kind.
type ServerMessage struct {
	Type    string
	Payload []byte
}

// WSClient represents a WebSocket client.
type WSClient struct {
	serverURL string
	name      string
	conn      *websocket.Conn
	// writeLock serializes writes, gorilla connections allow a single writer
	writeLock sync.Mutex
}

// NewWSClient creates a new WebSocket client that joins as name.
func NewWSClient(serverURL string, name string) *WSClient {
	return &WSClient{
		serverURL: serverURL,
		name:      name,
	}
}

// Connect establishes a connection to the WebSocket server.
func (c *WSClient) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %v", err)
	}
	q := u.Query()
	q.Set("name", c.name)
	u.RawQuery = q.Encode()

	log.Info("Connecting to WebSocket server at %s as %s", c.serverURL, c.name)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %v", err)
	}
	c.conn = conn
	return nil
}

// HandleMessages reads frames until the connection fails or ctx is done,
// delivering each one to out in order.
func (c *WSClient) HandleMessages(ctx context.Context, out chan<- ServerMessage) error {
	stop := context.AfterFunc(ctx, func() {
		c.conn.Close()
	})
	defer stop()

	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("Error reading WebSocket message from %s: %v", c.conn.RemoteAddr().String(), err)
			}
			return err
		}

		messageType, err := messages.ClassifyServerMessage(b)
		if err != nil {
			log.Warn("Ignoring message from server: %v", err)
			continue
		}
		log.Trace("Received %s message from WebSocket server", messageType)

		select {
		case out <- ServerMessage{Type: messageType, Payload: b}:
		case <-ctx.Done():
			return nil
		}
	}
}

// SelectWord sends a selection to the server.
func (c *WSClient) SelectWord(word string) error {
	b, err := messages.SerializeMessage(&messages.SelectWord{Word: word})
	if err != nil {
		return err
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}
	return nil
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	if c.conn == nil {
		log.Warn("WebSocket connection is already closed")
		return nil
	}

	c.writeLock.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeLock.Unlock()
	return c.conn.Close()
}
