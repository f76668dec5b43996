package main

import (
	"sync"

	"github.com/google/uuid"
)

// sendQueueSize bounds the per-client outbound queue. A client that cannot
// drain it is treated as dead and torn down, never blocking the sender.
const sendQueueSize = 64

// client is one connected socket. It may or may not own a player name yet;
// the hub tracks ownership. All hub-side sends go through the buffered send
// channel so no handler ever blocks on socket I/O.
type client struct {
	id   uuid.UUID
	wire wire

	send chan Envelope
	done chan struct{}

	closeOnce sync.Once
}

func newClient(w wire) *client {
	return &client{
		id:   uuid.New(),
		wire: w,
		send: make(chan Envelope, sendQueueSize),
		done: make(chan struct{}),
	}
}

// enqueue offers an envelope to the client without blocking. A false return
// means the client is gone or its queue is full, and the caller should tear
// it down.
func (c *client) enqueue(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// close shuts the connection exactly once. Safe against the double
// invocation that happens when the reader path and the heartbeat monitor
// both give up on the same connection. The send channel is left open;
// enqueue and writePump both watch done instead, so late senders drop the
// message rather than panic.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.wire.Close()
	})
}

// writePump drains the send queue onto the wire. A write failure tears the
// client down through the same path as a disconnect.
func (c *client) writePump(h *Hub) {
	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			if err := c.wire.WriteEnvelope(env); err != nil {
				h.log.Debugw("write failed", "client", c.id, "error", err)
				h.teardown(c)
				return
			}
		}
	}
}

// readPump decodes one envelope at a time and hands each to the hub. Any
// read or framing fault ends only this connection.
func (c *client) readPump(h *Hub) {
	for {
		env, err := c.wire.ReadEnvelope()
		if err != nil {
			h.log.Debugw("read failed", "client", c.id, "error", err)
			h.teardown(c)
			return
		}

		h.dispatch(c, env)
	}
}
