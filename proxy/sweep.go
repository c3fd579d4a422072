// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"

	"github.com/remora-foundation/remora/wire"
)

// runSweeper periodically collects reclaimed stubs into release
// batches. The interval trades host-side handle lifetime against
// request frequency; handles are small, so the default leans long.
func (m *Manager) runSweeper(ctx context.Context) {
	defer m.loops.Done()
	ticker := m.clock().NewTicker(m.sweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep removes table entries whose stubs were garbage-collected and
// sends their ids, together with explicitly released ids, to the host
// in one release request. Each id leaves in exactly one batch: the
// entry is deleted in the same critical section that queues the id, so
// a later sweep cannot pick it up again. Release is fire-and-forget;
// a failed send drops the batch (release is idempotent host-side, but
// a dead transport means the host is tearing down anyway).
func (m *Manager) sweep() {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	for id, pointer := range m.stubs {
		if pointer.Value() == nil {
			delete(m.stubs, id)
			batch = append(batch, id)
		}
	}
	m.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := m.endpoint.Send(wire.Request{Type: wire.TypeRelease, IDs: batch}); err != nil {
		m.logger().Debug("release batch failed", "count", len(batch), "error", err)
		return
	}
	m.logger().Debug("released remote handles", "count", len(batch))
}
