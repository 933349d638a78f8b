// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store defines the resolver's external path-index contract (spec
// §1 treats the index itself as out of scope) and a minimal in-memory
// reference implementation sufficient to exercise resolverserver end to
// end.
package store

import (
	"sync"

	"code.hybscloud.com/netframe/path"
	"code.hybscloud.com/netframe/proto/resolver"
)

// Store is the contract the resolver session layer drives. Everything it
// needs from the path index is expressed here; a production deployment's
// actual index (persistence, sharding, replication) is out of scope.
type Store interface {
	// Publish registers addr as a publisher of p for writer. flags is an
	// opaque per-publication bitset (PublishWithFlags).
	Publish(writer string, p path.Path, addr string, flags uint64, def bool) error
	// Unpublish removes writer's registration of p.
	Unpublish(writer string, p path.Path, def bool) error
	// HandleClear removes every registration belonging to writer, as if
	// every Unpublish for it had been called (spec §4.3 step 5, Clear).
	HandleClear(writer string) error

	// Resolve returns, for each path, the set of addresses currently
	// publishing it.
	Resolve(paths []path.Path) [][]string
	// List returns the direct child names of p.
	List(p path.Path) []string
	// ListMatching returns every published path matching any glob in gs.
	ListMatching(gs path.GlobSet) []path.Path
	// Table returns the direct children of p that are themselves
	// published paths versus structural-only entries; returned as the
	// full set of children, matching List for this reference store.
	Table(p path.Path) []string

	// CheckChanged reports whether the store's structure has changed
	// since tracker was issued, and the generation to remember for next
	// time (spec §4.6, supplemented from original_source).
	CheckChanged(tracker uint64) (changed bool, generation uint64)
}

// Memory is an in-memory Store: paths map to the set of writer addresses
// publishing them, and every mutation bumps a generation counter used by
// CheckChanged.
type Memory struct {
	mu         sync.RWMutex
	byPath     map[path.Path]map[string]string // path -> writer -> addr
	generation uint64
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{byPath: make(map[path.Path]map[string]string)}
}

func (m *Memory) Publish(writer string, p path.Path, addr string, _ uint64, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	writers, ok := m.byPath[p]
	if !ok {
		writers = make(map[string]string)
		m.byPath[p] = writers
	}
	writers[writer] = addr
	m.generation++
	return nil
}

func (m *Memory) Unpublish(writer string, p path.Path, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	writers, ok := m.byPath[p]
	if !ok {
		return nil
	}
	delete(writers, writer)
	if len(writers) == 0 {
		delete(m.byPath, p)
	}
	m.generation++
	return nil
}

func (m *Memory) HandleClear(writer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, writers := range m.byPath {
		if _, ok := writers[writer]; ok {
			delete(writers, writer)
			if len(writers) == 0 {
				delete(m.byPath, p)
			}
		}
	}
	m.generation++
	return nil
}

func (m *Memory) Resolve(paths []path.Path) [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]string, len(paths))
	for i, p := range paths {
		writers := m.byPath[p]
		addrs := make([]string, 0, len(writers))
		for _, addr := range writers {
			addrs = append(addrs, addr)
		}
		out[i] = addrs
	}
	return out
}

func (m *Memory) List(p path.Path) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for candidate := range m.byPath {
		parent, ok := candidate.Parent()
		if !ok || parent != p {
			continue
		}
		name := candidate.Basename()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (m *Memory) Table(p path.Path) []string { return m.List(p) }

func (m *Memory) ListMatching(gs path.GlobSet) []path.Path {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []path.Path
	for p := range m.byPath {
		if gs.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m *Memory) CheckChanged(tracker uint64) (bool, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tracker != m.generation, m.generation
}

// ResolveToWire resolves paths and shapes the result as resolver.FromRead,
// attaching spn to every address when the caller's session is
// authenticated (empty for anonymous sessions, spec §4.6 krb5_spns).
func ResolveToWire(s Store, resolverAddr string, paths []string, spn func(addr string) string) resolver.FromRead {
	pp := make([]path.Path, len(paths))
	for i, p := range paths {
		pp[i] = path.New(p)
	}
	resolved := s.Resolve(pp)
	out := make([][]resolver.ResolvedAddr, len(resolved))
	for i, addrs := range resolved {
		row := make([]resolver.ResolvedAddr, len(addrs))
		for j, addr := range addrs {
			spnVal := ""
			if spn != nil {
				spnVal = spn(addr)
			}
			row[j] = resolver.ResolvedAddr{Addr: addr, SPN: spnVal}
		}
		out[i] = row
	}
	return resolver.FromRead{Kind: resolver.FromReadResolved, ResolverAddr: resolverAddr, Resolved: out}
}
