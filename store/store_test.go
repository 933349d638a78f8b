// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"code.hybscloud.com/netframe/path"
	"code.hybscloud.com/netframe/store"
)

func TestPublishResolve(t *testing.T) {
	s := store.NewMemory()
	p := path.New("/a/b")
	require.NoError(t, s.Publish("writer-1", p, "10.0.0.1:100", 0, false))
	got := s.Resolve([]path.Path{p})
	require.Len(t, got, 1)
	require.Equal(t, []string{"10.0.0.1:100"}, got[0])
}

func TestUnpublishRemovesWhenLastWriter(t *testing.T) {
	s := store.NewMemory()
	p := path.New("/a/b")
	s.Publish("w1", p, "addr1", 0, false)
	s.Publish("w2", p, "addr2", 0, false)
	s.Unpublish("w1", p, false)
	got := s.Resolve([]path.Path{p})[0]
	require.Equal(t, []string{"addr2"}, got)

	s.Unpublish("w2", p, false)
	got = s.Resolve([]path.Path{p})[0]
	require.Empty(t, got, "want no addresses once every writer unpublishes")
}

func TestHandleClearRemovesEveryRegistration(t *testing.T) {
	s := store.NewMemory()
	s.Publish("w1", path.New("/a"), "addr1", 0, false)
	s.Publish("w1", path.New("/b"), "addr1", 0, false)
	s.Publish("w2", path.New("/a"), "addr2", 0, false)
	require.NoError(t, s.HandleClear("w1"))

	got := s.Resolve([]path.Path{path.New("/a"), path.New("/b")})
	require.Equal(t, []string{"addr2"}, got[0], "/a")
	require.Empty(t, got[1], "/b should be empty after clear")
}

func TestListAndListMatching(t *testing.T) {
	s := store.NewMemory()
	s.Publish("w1", path.New("/a/b"), "addr1", 0, false)
	s.Publish("w1", path.New("/a/c"), "addr1", 0, false)

	require.Len(t, s.List(path.New("/a")), 2)
	require.Len(t, s.ListMatching(path.NewGlobSet("/a/*")), 2)
}

func TestCheckChanged(t *testing.T) {
	s := store.NewMemory()
	changed, gen := s.CheckChanged(0)
	require.False(t, changed, "a fresh store at generation 0 with tracker 0 should report unchanged")

	s.Publish("w1", path.New("/a"), "addr1", 0, false)
	changed, gen2 := s.CheckChanged(gen)
	require.True(t, changed, "expected a change to be reported after Publish")
	require.NotEqual(t, gen, gen2, "generation should advance after a mutation")
}
