package gateway

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 4096
)

// Client is a single websocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed pairs; empty means every pair.
	mu    sync.RWMutex
	pairs map[string]bool
}

// inbound is a control message from the peer.
type inbound struct {
	Type    string   `json:"type"`
	Pairs   []string `json:"pairs"`
	Channel string   `json:"channel"`
	From    int64    `json:"from"`
	To      int64    `json:"to"`
	Ping    int64    `json:"ping"`
}

// queueSnapshotLocked queues the newest payload of every channel updated
// after since. The caller holds the hub lock.
func (c *Client) queueSnapshotLocked(since string) {
	var cutoff time.Time
	if since != "" {
		if t, err := time.Parse(time.RFC3339Nano, since); err == nil {
			cutoff = t
		}
	}

	for channel, e := range c.hub.latest {
		if !cutoff.IsZero() && !e.TS.After(cutoff) {
			continue
		}
		env := appendEnvelope(nil, channel, e.Data, e.TS, 0, e.Seq, true)
		select {
		case c.send <- env:
		default:
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
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inbound
		if json.Unmarshal(raw, &msg) != nil {
			c.reply(map[string]interface{}{"type": "error", "message": "invalid json"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg inbound) {
	switch strings.ToUpper(msg.Type) {
	case "SUBSCRIBE":
		c.mu.Lock()
		for _, p := range msg.Pairs {
			c.pairs[strings.ToUpper(p)] = true
		}
		c.mu.Unlock()
		c.reply(map[string]interface{}{"type": "subscribed", "pairs": c.subscribed()})

	case "UNSUBSCRIBE":
		c.mu.Lock()
		if len(msg.Pairs) == 0 {
			c.pairs = make(map[string]bool)
		}
		for _, p := range msg.Pairs {
			delete(c.pairs, strings.ToUpper(p))
		}
		c.mu.Unlock()
		c.reply(map[string]interface{}{"type": "subscribed", "pairs": c.subscribed()})

	case "REPLAY":
		for _, env := range c.hub.Replay(msg.Channel, msg.From, msg.To) {
			c.enqueue(env)
		}

	default:
		if msg.Ping > 0 {
			c.reply(map[string]interface{}{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			return
		}
		c.reply(map[string]interface{}{"type": "error", "message": "unknown message type " + msg.Type})
	}
}

func (c *Client) subscribed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.pairs))
	for p := range c.pairs {
		out = append(out, p)
	}
	return out
}

func (c *Client) reply(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.enqueue(b)
}

// enqueue sends under the hub read lock so it never races RemoveClient
// closing the queue.
func (c *Client) enqueue(b []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// wants reports whether channel passes the client's pair filter. Macro
// channels always pass.
func (c *Client) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.pairs) == 0 {
		return true
	}
	pc := parseChannel(channel)
	if pc == nil || pc.macro {
		return true
	}
	return c.pairs[pc.pair]
}

// parsedChannel is a decoded result channel name.
type parsedChannel struct {
	macro    bool
	interval string
	pair     string
}

// parseChannel decodes "pub:sig:{interval}:{pair}" and
// "pub:sig:macro:{interval}".
func parseChannel(channel string) *parsedChannel {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[0] != "pub" || parts[1] != "sig" {
		return nil
	}
	if parts[2] == "macro" {
		return &parsedChannel{macro: true, interval: parts[3]}
	}
	return &parsedChannel{interval: parts[2], pair: parts[3]}
}
