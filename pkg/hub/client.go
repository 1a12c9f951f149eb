package hub

import (
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Websocket timings. Pings go out often enough that a healthy browser
// answers before the read deadline passes.
const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10

	// Browsers only send pongs and close frames.
	readLimit = 4 << 10

	// Queued messages allowed before a client counts as slow.
	queueSize = 16
)

// Client is one dashboard websocket attached to a hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// Attach registers conn with h. Greeting messages are queued ahead of any
// broadcast. It returns nil once h has stopped.
func Attach(h *Hub, conn *websocket.Conn, greeting ...Message) *Client {
	c := &Client{
		hub:  h,
		conn: conn,
		send: make(chan Message, queueSize+len(greeting)),
	}
	for _, m := range greeting {
		c.send <- m
	}
	select {
	case h.register <- c:
		return c
	case <-h.done:
		return nil
	}
}

// Serve pumps messages until the browser goes away or the hub stops.
// It blocks, so call it from the websocket handler.
func (c *Client) Serve() {
	go c.deliver()
	c.watch()
}

// watch consumes pongs and close frames. A read error means the peer is gone.
func (c *Client) watch() {
	defer c.detach()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
	c.conn.Close()
}

// deliver is the only goroutine that writes to the connection.
func (c *Client) deliver() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(msg.Kind.frameType(), msg.Payload); err != nil {
				return
			}

		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(frameType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(frameType, data)
}

// frameType maps a Kind to its websocket frame type.
func (k Kind) frameType() int {
	if k == KindFrame {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
