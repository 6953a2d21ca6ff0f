package ws

import (
	"sync"
	"time"

	"contact_game/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	readLimit      = 4096
	sendBufferSize = 64
)

// Client owns one websocket connection and its read/write pumps. Inbound
// messages go to the session; outbound ones are queued on Send.
type Client struct {
	Username string
	Conn     *websocket.Conn
	Send     chan []byte

	session *Session

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(username string, conn *websocket.Conn) *Client {
	return &Client{
		Username: username,
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// Run starts the pumps and blocks until the connection is gone.
func (c *Client) Run(session *Session) {
	c.session = session
	go c.writePump()
	c.readPump()
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.Conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.session.Disconnect()
		c.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("read error", "user", c.Username, "error", err)
			}
			return
		}
		c.session.HandleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warn("write error", "user", c.Username, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
