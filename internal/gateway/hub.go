package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fx-confluence/internal/confluence"
	sigredis "fx-confluence/internal/store/redis"
)

const (
	sendBuffer     = 64
	replayCapacity = 200
)

// Hub fans evaluation results out to websocket clients. Every channel
// keeps its newest payload (sent to new clients on connect) and a replay
// buffer of recent envelopes for gap backfill.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	channelSeqs map[string]int64
	replayBufs  map[string]*ReplayBuffer

	// Lag tracks evaluation-to-push delay.
	Lag *LagTracker

	// origins is the browser Origin allow-list; empty admits any origin.
	origins  map[string]bool
	upgrader websocket.Upgrader

	// OnClients, when set, is called with the client count after every
	// connect and disconnect.
	OnClients func(n int)

	now func() time.Time
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		Lag:         NewLagTracker(1000),
		now:         time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// AllowOrigins restricts browser connections to the given origins
// (scheme://host[:port], case-insensitive). Requests without an Origin
// header are non-browser clients and are always admitted. Call before
// serving.
func (h *Hub) AllowOrigins(origins []string) {
	h.origins = make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			h.origins[strings.ToLower(strings.TrimRight(o, "/"))] = true
		}
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	if h.origins[strings.ToLower(origin)] {
		return true
	}
	log.Printf("[gateway] rejected ws origin %q", origin)
	return false
}

// ServeHTTP upgrades the request to a websocket and registers the client.
// A "since" query parameter (RFC3339Nano) limits the initial snapshot to
// channels updated after that instant.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade: %v", err)
		return
	}
	h.register(conn, r.URL.Query().Get("since"))
}

func (h *Hub) register(conn *websocket.Conn, since string) {
	c := &Client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		hub:   h,
		pairs: make(map[string]bool),
	}

	// Snapshot under the write lock so no broadcast interleaves with it.
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	c.queueSnapshotLocked(since)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", n)
	h.notifyClients(n)

	go c.writePump()
	go c.readPump()
}

// RemoveClient unregisters c and closes its send queue. Safe to call twice.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	log.Printf("[gateway] ws client disconnected (%d total)", n)
	h.notifyClients(n)
}

func (h *Hub) notifyClients(n int) {
	if h.OnClients != nil {
		h.OnClients(n)
	}
}

// BroadcastReport pushes the macro result and every pair result of rep on
// the same channels the Redis publisher uses.
func (h *Hub) BroadcastReport(rep *confluence.Report) {
	if rep == nil {
		return
	}
	macro := rep.Macro.Result
	h.Broadcast(sigredis.MacroChannel(macro.Interval), macro.JSON())
	for i := range rep.Pairs {
		r := &rep.Pairs[i].Result
		h.Broadcast(sigredis.Channel(r.Interval, r.Pair), r.JSON())
	}
	if !rep.EvaluatedAt.IsZero() {
		h.Lag.Record(h.now().Sub(rep.EvaluatedAt))
	}
}

// Broadcast wraps data in an envelope and queues it for every client
// subscribed to channel. Slow clients drop messages rather than block.
func (h *Hub) Broadcast(channel string, data []byte) {
	now := h.now().UTC()

	h.mu.Lock()
	h.seq++
	h.channelSeqs[channel]++
	seq, chSeq := h.seq, h.channelSeqs[channel]
	h.latest[channel] = latestEntry{Data: data, TS: now, Seq: chSeq}
	rb, ok := h.replayBufs[channel]
	if !ok {
		rb = NewReplayBuffer(replayCapacity)
		h.replayBufs[channel] = rb
	}
	h.mu.Unlock()

	env := appendEnvelope(nil, channel, data, now, seq, chSeq, false)
	rb.Push(chSeq, env)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(channel) {
			continue
		}
		select {
		case c.send <- env:
		default:
		}
	}
}

// Latest returns a copy of the newest payload per channel.
func (h *Hub) Latest() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		out[k] = v.Data
	}
	return out
}

// Replay returns buffered envelopes for channel with channel_seq in
// [from, to].
func (h *Hub) Replay(channel string, from, to int64) [][]byte {
	h.mu.RLock()
	rb, ok := h.replayBufs[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	entries := rb.Range(from, to)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// ChannelSeq returns the current sequence number of channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	cs := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		cs = append(cs, c)
	}
	h.mu.RUnlock()
	for _, c := range cs {
		h.RemoveClient(c)
	}
}
