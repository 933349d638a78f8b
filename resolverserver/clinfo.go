// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolverserver

import (
	"sync"

	"code.hybscloud.com/netframe/security"
)

// clientState is a writer session's bookkeeping state (spec §3 Client
// record): Running while a write connection actively owns the address,
// CleaningUp while a prior session's teardown (store clear, secret purge)
// is in flight.
type clientState struct {
	running bool
	stop    chan struct{}   // Running: closing it cancels the session
	waiters []chan struct{} // CleaningUp: closed in turn once cleanup finishes

	ctx    security.Context // installed once auth Initiate succeeds; reused on AuthReuse
	secret uint64           // the ownership-proof secret handed out at Initiate time
}

// clinfos maps writer address to session state. Exactly one session exists
// per writer address at a time (spec §3).
type clinfos struct {
	mu sync.Mutex
	m  map[string]*clientState
}

func newClinfos() *clinfos {
	return &clinfos{m: make(map[string]*clientState)}
}

// registerRunning installs a new Running session for addr, returning
// ttlExpired (false iff a prior Running session existed and was replaced)
// and a stop channel the caller must close on session end. If a session is
// replaced, its previous stop channel is closed to cancel it.
func (c *clinfos) registerRunning(addr string) (stop chan struct{}, ttlExpired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stop = make(chan struct{})
	prev, ok := c.m[addr]
	if !ok {
		c.m[addr] = &clientState{running: true, stop: stop}
		return stop, true
	}
	if prev.running {
		close(prev.stop)
		c.m[addr] = &clientState{running: true, stop: stop}
		return stop, false
	}
	// CleaningUp: caller must wait and retry; see waitForCleanup.
	return nil, false
}

// waitForCleanup registers a waiter on addr's in-progress cleanup and
// returns a channel that closes once it completes. It is nil if addr is not
// currently cleaning up.
func (c *clinfos) waitForCleanup(addr string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.m[addr]
	if !ok || st.running {
		return nil
	}
	w := make(chan struct{})
	st.waiters = append(st.waiters, w)
	return w
}

// beginCleanup transitions addr to CleaningUp and reports isOwner: true only
// if owned is the stop channel of addr's current Running session. isOwner
// guards against a session that lost a race with a newer registerRunning
// call cleaning up the newer session's entry by mistake; a second call for
// an entry already cleaning up also reports false.
func (c *clinfos) beginCleanup(addr string, owned chan struct{}) (isOwner bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.m[addr]
	if !ok || st.stop != owned || !st.running {
		return false
	}
	st.running = false
	return true
}

// setAuth attaches the security context and ownership secret created for a
// Running session at addr, so a later AuthReuse hello on the same address
// can find them.
func (c *clinfos) setAuth(addr string, ctx security.Context, secret uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.m[addr]; ok {
		st.ctx, st.secret = ctx, secret
	}
}

// authFor returns the security context previously installed for addr by
// setAuth, for AuthReuse to pick back up.
func (c *clinfos) authFor(addr string) (security.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.m[addr]
	if !ok || st.ctx == nil {
		return nil, false
	}
	return st.ctx, true
}

// finishCleanup removes addr's entry and releases every waiter that
// accumulated during cleanup.
func (c *clinfos) finishCleanup(addr string) {
	c.mu.Lock()
	st, ok := c.m[addr]
	if ok {
		delete(c.m, addr)
	}
	c.mu.Unlock()
	if ok {
		for _, w := range st.waiters {
			close(w)
		}
	}
}
