package sendpath

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/oxen-io/session-network-core/pkg/difficulty"
	"github.com/oxen-io/session-network-core/pkg/executor"
	"github.com/oxen-io/session-network-core/pkg/failure"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/storage/memstore"
	"github.com/oxen-io/session-network-core/pkg/storagerpc"
	"github.com/oxen-io/session-network-core/pkg/swarm"
	"github.com/oxen-io/session-network-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTestURL(t *testing.T, raw string) types.ServiceNode {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)
	return types.ServiceNode{Address: parsed.Scheme + "://" + parsed.Hostname(), Port: port}
}

func newTestMessage() types.Message {
	return types.Message{
		Destination: "05abc",
		Body:        []byte("hello"),
		TTL:         24 * time.Hour,
		Timestamp:   time.Now(),
	}
}

func TestSend_ConversionFailureOnEmptyDestination(t *testing.T) {
	http := httpclient.New()
	pool := swarm.NewRandomPool(http, nil)
	rpc := storagerpc.New(http, failure.New(), difficulty.New(1))
	d := swarm.New(pool, rpc, memstore.New())
	s := New(http, d, difficulty.New(1), NewPeerTable(), executor.NewPools())

	msg := newTestMessage()
	msg.Destination = ""
	_, err := s.Send(context.Background(), msg, nil)
	assert.Error(t, err)
}

func TestSend_PrefersOnlinePeerAndInvokesCallback(t *testing.T) {
	var hit bool
	peerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	t.Cleanup(peerSrv.Close)
	peerNode := parseTestURL(t, peerSrv.URL)

	hc := httpclient.New()
	pool := swarm.NewRandomPool(hc, nil)
	rpc := storagerpc.New(hc, failure.New(), difficulty.New(1))
	d := swarm.New(pool, rpc, memstore.New())
	peers := NewPeerTable()
	peers.Set(types.Peer{PublicKey: "05abc", Address: peerNode.Address, Port: peerNode.Port, Online: true})
	s := New(hc, d, difficulty.New(1), peers, executor.NewPools())

	var calledBack bool
	res, err := s.Send(context.Background(), newTestMessage(), func(types.Peer) { calledBack = true })
	require.NoError(t, err)
	assert.Equal(t, PathP2P, res.Path)
	assert.True(t, hit)
	assert.True(t, calledBack)
}

func TestSend_FallsBackToSwarmWhenPeerUnreachable(t *testing.T) {
	// peer address resolves to nothing reachable
	hc := httpclient.New()

	swarmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"difficulty":1}`))
	}))
	t.Cleanup(swarmSrv.Close)
	target := parseTestURL(t, swarmSrv.URL)

	pool := swarm.NewRandomPool(hc, nil)
	rpc := storagerpc.New(hc, failure.New(), difficulty.New(1))
	store := memstore.New()
	d := swarm.New(pool, rpc, store)
	require.NoError(t, store.SetSwarmCache("05abc", []types.ServiceNode{target, target}))

	peers := NewPeerTable()
	peers.Set(types.Peer{PublicKey: "05abc", Address: "https://127.0.0.1", Port: 1, Online: true})
	s := New(hc, d, difficulty.New(1), peers, executor.NewPools())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	res, err := s.Send(ctx, newTestMessage(), nil)
	require.NoError(t, err)
	assert.Equal(t, PathSwarm, res.Path)

	p, ok := peers.Get("05abc")
	require.True(t, ok)
	assert.False(t, p.Online)
}

func TestSend_SwarmPathUpdatesDifficultyFromResponse(t *testing.T) {
	hc := httpclient.New()
	swarmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"difficulty":77}`))
	}))
	t.Cleanup(swarmSrv.Close)
	target := parseTestURL(t, swarmSrv.URL)

	pool := swarm.NewRandomPool(hc, nil)
	rpc := storagerpc.New(hc, failure.New(), difficulty.New(1))
	store := memstore.New()
	d := swarm.New(pool, rpc, store)
	require.NoError(t, store.SetSwarmCache("05abc", []types.ServiceNode{target, target}))

	diff := difficulty.New(1)
	s := New(hc, d, diff, NewPeerTable(), executor.NewPools())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	res, err := s.Send(ctx, newTestMessage(), nil)
	require.NoError(t, err)
	assert.Equal(t, PathSwarm, res.Path)
	assert.Equal(t, 77, diff.Get())
}
