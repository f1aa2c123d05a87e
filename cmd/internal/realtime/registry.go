package realtime

import (
	"log/slog"
	"sync"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/telemetry"
)

// Registry maps an identity to its single live connection.
//
// A newer registration for the same identity replaces the older one; the
// replaced client is not closed here, it simply stops receiving pushes.
type Registry struct {
	log     *slog.Logger
	metrics *telemetry.Metrics

	mu    sync.RWMutex
	conns map[string]*Client
}

func NewRegistry(log *slog.Logger, metrics *telemetry.Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log,
		metrics: metrics,
		conns:   make(map[string]*Client),
	}
}

// Register makes c the live connection of identity.
func (r *Registry) Register(identity string, c *Client) {
	r.mu.Lock()
	prev, replaced := r.conns[identity]
	r.conns[identity] = c
	r.mu.Unlock()

	if replaced {
		r.log.Info("ws.registry.replace", "user_id", identity, "old_conn_id", prev.ConnID, "conn_id", c.ConnID)
		return
	}
	r.metrics.ConnectionOpened()
}

// Unregister removes identity only while c is still its registered
// connection, so a closing stale connection cannot evict a newer one.
func (r *Registry) Unregister(identity string, c *Client) bool {
	r.mu.Lock()
	cur, ok := r.conns[identity]
	if !ok || cur != c {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, identity)
	r.mu.Unlock()

	r.metrics.ConnectionClosed()
	return true
}

// Lookup returns the live connection of identity, if any.
func (r *Registry) Lookup(identity string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[identity]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Send queues payload on identity's live connection.
// It reports whether a connection was registered; a full or closing
// queue drops the payload and is not reported to the caller.
func (r *Registry) Send(identity string, payload []byte) bool {
	c, ok := r.Lookup(identity)
	if !ok {
		return false
	}
	if !c.Enqueue(payload) {
		r.metrics.FrameDropped("queue_full")
		r.log.Warn("ws.push.drop", "user_id", identity, "conn_id", c.ConnID)
	}
	return true
}

// CloseAll signals every registered client to close and returns how many
// were signalled. Gateway handlers unregister them as their connections end.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
	return len(clients)
}
