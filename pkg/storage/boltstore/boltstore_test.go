package boltstore

import (
	"testing"

	"github.com/oxen-io/session-network-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwarmCachePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	nodes := []types.ServiceNode{{Address: "https://1.1.1.1", Port: 22021}}
	require.NoError(t, s.SetSwarmCache("pk1", nodes))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetSwarmCache("pk1")
	require.NoError(t, err)
	assert.Equal(t, nodes, got)
}

func TestOpenGroupCursorsScopedByChannelAndServer(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetLastMessageServerID(1, "https://sogs.a", 1000))
	require.NoError(t, s.SetLastMessageServerID(2, "https://sogs.a", 7))

	id, err := s.GetLastMessageServerID(1, "https://sogs.a")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), id)

	id, err = s.GetLastMessageServerID(2, "https://sogs.a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestReceivedHashDedup(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ok, _ := s.HasReceivedHash("h1")
	assert.False(t, ok)
	require.NoError(t, s.AddReceivedHash("h1"))
	ok, _ = s.HasReceivedHash("h1")
	assert.True(t, ok)
}
