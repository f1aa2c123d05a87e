package realtime

import (
	"sync"
)

// Client is the outbound handle of one live websocket connection.
//
// The outbound queue is never closed by the server so concurrent senders
// cannot panic; done signals shutdown instead. Close is idempotent.
type Client struct {
	ConnID string
	UserID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded outbound queue.
func NewClient(userID, connID string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Client{
		ConnID: connID,
		UserID: userID,
		send:   make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

// Enqueue queues payload for the writer without blocking.
// It reports false when the client is closed or its queue is full.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Outbound is drained by the connection writer.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
