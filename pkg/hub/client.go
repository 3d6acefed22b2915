package hub

import (
	"slices"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be less than pongWait

	// Subscribers only send control frames.
	maxMessageSize = 512

	sendBuffer = 256
)

// Client is one event subscriber. An empty source filter receives every
// event.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	sources map[string]bool
}

// ParseSources splits a "scan,follower" query value into source names.
func ParseSources(query string) []string {
	var out []string
	for _, s := range strings.Split(query, ",") {
		if s = strings.TrimSpace(strings.ToLower(s)); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// NewClient registers conn with the hub, limited to events from sources
// when any are given.
func NewClient(hub *Hub, conn *websocket.Conn, sources ...string) *Client {
	c := newClient(hub, sources)
	c.conn = conn
	hub.register <- c
	return c
}

func newClient(hub *Hub, sources []string) *Client {
	c := &Client{
		id:   uuid.NewString()[:8],
		hub:  hub,
		send: make(chan []byte, sendBuffer),
	}
	if len(sources) > 0 {
		c.sources = make(map[string]bool, len(sources))
		for _, s := range sources {
			c.sources[s] = true
		}
	}
	return c
}

func (c *Client) wants(source string) bool {
	return c.sources == nil || c.sources[source]
}

func (c *Client) sourceList() []string {
	if c.sources == nil {
		return nil
	}
	out := make([]string, 0, len(c.sources))
	for s := range c.sources {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Run serves the connection until the peer goes away or the hub drops the
// client. It blocks; call it from the websocket handler.
func (c *Client) Run() {
	go c.watchPeer()

	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.logger.Debug("event write failed", "client", c.id, "error", err)
				c.leave()
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.leave()
				return
			}
		}
	}
}

// watchPeer reads until the connection fails; subscribers never send data
// frames, only pongs and the close handshake.
func (c *Client) watchPeer() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.leave()
			c.conn.Close()
			return
		}
	}
}

// leave unregisters the client unless the hub has already stopped.
func (c *Client) leave() {
	if !c.hub.IsRunning() {
		return
	}
	select {
	case c.hub.unregister <- c:
	case <-time.After(writeWait):
	}
}
