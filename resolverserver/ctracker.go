// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolverserver

import (
	"sync"

	"github.com/google/uuid"
)

// CId identifies one open connection for admission-control purposes.
type CId uuid.UUID

func newCId() CId { return CId(uuid.New()) }

// CTracker counts currently-open connections. The accept loop consults
// NumOpen against MaxConnections and, when over the limit, sleeps in 10ms
// increments before accepting more (spec §4.3 Admission control) — a
// deliberate choice per an explicit spec Open Question over a semaphore;
// see DESIGN.md.
type CTracker struct {
	mu   sync.Mutex
	open map[CId]struct{}
}

func newCTracker() *CTracker {
	return &CTracker{open: make(map[CId]struct{})}
}

// Open records a new connection and returns its id.
func (t *CTracker) Open() CId {
	id := newCId()
	t.mu.Lock()
	t.open[id] = struct{}{}
	t.mu.Unlock()
	return id
}

// Close releases a connection previously returned by Open.
func (t *CTracker) Close(id CId) {
	t.mu.Lock()
	delete(t.open, id)
	t.mu.Unlock()
}

// NumOpen reports how many connections are currently tracked open.
func (t *CTracker) NumOpen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}
