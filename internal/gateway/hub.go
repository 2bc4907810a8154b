package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BibekSapkota1/Share-Project/internal/metrics"
	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Subscriber delivers cycle events published by other processes. The Redis
// client implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, handle func(model.CycleEvent)) error
}

// Hub fans cycle events out to the websocket clients of the user who owns
// the cycle. Every event gets a hub-wide seq and is kept in a replay buffer
// so a reconnecting client can catch up from the last seq it saw.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	seq     int64
	replay  *ReplayBuffer

	prom *metrics.Metrics
	now  func() time.Time
}

// NewHub creates a Hub keeping the last replaySize envelopes.
func NewHub(replaySize int, prom *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		prom:    prom,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Instrument attaches metrics. Call it before the hub serves clients.
func (h *Hub) Instrument(prom *metrics.Metrics) {
	h.mu.Lock()
	h.prom = prom
	h.mu.Unlock()
}

var _ model.EventPublisher = (*Hub)(nil)

// PublishCycleEvent broadcasts evt in-process. It lets the hub stand in for
// the Redis publisher when the API runs without Redis.
func (h *Hub) PublishCycleEvent(ctx context.Context, evt model.CycleEvent) error {
	h.Broadcast(evt)
	return nil
}

// Broadcast sends evt to the owning user's clients. Sequencing, buffering
// and fan-out happen under one lock so a client registering concurrently
// sees each event exactly once, either replayed or live.
func (h *Hub) Broadcast(evt model.CycleEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("marshal cycle event", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if !evt.TS.IsZero() {
		h.prom.ObserveEventDelay(now.Sub(evt.TS))
	}
	h.seq++
	buf := envelope(h.seq, now, data)
	h.replay.Push(h.seq, evt.Cycle.UserID, buf)

	for client := range h.clients {
		if client.userID != evt.Cycle.UserID {
			continue
		}
		h.enqueue(client, buf)
	}
}

// envelope builds {"type":"cycle_event","seq":N,"ts":"...","event":{...}}.
func envelope(seq int64, now time.Time, event []byte) []byte {
	buf := make([]byte, 0, len(event)+96)
	buf = append(buf, `{"type":"cycle_event","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","event":`...)
	buf = append(buf, event...)
	buf = append(buf, '}')
	return buf
}

// enqueue drops the message when the client is not keeping up.
func (h *Hub) enqueue(c *Client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.prom.WSDropped()
	}
}

// reply queues msg for c unless c has already been removed; the lock
// guards send against a concurrent close.
func (h *Hub) reply(c *Client, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		h.enqueue(c, msg)
	}
}

// HandleWS registers conn for userID, replays buffered events after lastSeq
// and starts the client pumps.
func (h *Hub) HandleWS(conn *websocket.Conn, userID, lastSeq int64) {
	client := newClient(h, conn, userID)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	if lastSeq > 0 {
		if oldest := h.replay.Oldest(); oldest > lastSeq+1 {
			slog.Info("ws replay gap", "user_id", userID, "last_seq", lastSeq, "oldest", oldest)
		}
		for _, e := range h.replay.Since(lastSeq, userID) {
			h.enqueue(client, e.Data)
		}
	}
	h.mu.Unlock()

	h.prom.WSClientDelta(1)
	slog.Info("ws client connected", "user_id", userID, "clients", count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient unregisters c and closes its send channel. Safe to call
// more than once.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.prom.WSClientDelta(-1)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Seq returns the last assigned seq.
func (h *Hub) Seq() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Run relays events from sub into the hub until ctx is cancelled,
// resubscribing with backoff when the subscription fails.
func (h *Hub) Run(ctx context.Context, sub Subscriber) {
	backoff := time.Second
	for {
		err := sub.Subscribe(ctx, h.Broadcast)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			backoff = time.Second
		} else {
			slog.Warn("cycle event subscription failed", "err", err, "retry_in", backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if err != nil && backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
