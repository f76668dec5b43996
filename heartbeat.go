package main

import (
	"context"
	"time"
)

// monitorHeartbeats periodically reclaims connections that have gone
// silent. lastSeen is refreshed by any inbound envelope, so a healthy but
// quiet client only needs its heartbeat tags to survive the sweep. Stale
// connections go through the ordinary teardown cascade, exactly as if they
// had disconnected.
func (h *Hub) monitorHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(time.Now())
		}
	}
}

// sweep tears down every connection whose last inbound message is older
// than the timeout. The stale set is snapshotted under the lock so the
// sweep tolerates connections being added or removed mid-scan by other
// workers.
func (h *Hub) sweep(now time.Time) {
	h.mu.Lock()
	var stale []*client
	for id, seen := range h.lastSeen {
		if now.Sub(seen) > h.cfg.heartbeatTimeout {
			stale = append(stale, h.clients[id])
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		h.log.Infow("heartbeat timeout", "client", c.id)
		h.teardown(c)
	}
}
