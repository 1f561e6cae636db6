package storagerpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/oxen-io/session-network-core/pkg/difficulty"
	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/failure"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseTestURL splits an httptest.Server URL (scheme://host:port) back into
// the (Address, Port) shape ServiceNode expects, since URL() reassembles
// them as "Address:Port".
func parseTestURL(t *testing.T, raw string) types.ServiceNode {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)
	return types.ServiceNode{
		Address: parsed.Scheme + "://" + parsed.Hostname(),
		Port:    port,
	}
}

func newTestTarget(t *testing.T, handler http.HandlerFunc) types.ServiceNode {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return parseTestURL(t, srv.URL)
}

func TestInvoke_200DecodesBody(t *testing.T) {
	target := newTestTarget(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"snodes":[]}`))
	})
	c := New(httpclient.New(), failure.New(), difficulty.New(40))

	res, evicted, err := c.Invoke(context.Background(), target, MethodGetSwarm, map[string]any{"pubKey": "pk"})
	require.NoError(t, err)
	assert.False(t, evicted)
	assert.Equal(t, []any{}, res["snodes"])
}

// S1 — Difficulty bump on 432.
func TestInvoke_432UpdatesDifficultyAndFails(t *testing.T) {
	target := newTestTarget(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(432)
		_, _ = w.Write([]byte(`{"difficulty":100}`))
	})
	diff := difficulty.New(40)
	failures := failure.New()
	c := New(httpclient.New(), failures, diff)

	_, evicted, err := c.Invoke(context.Background(), target, MethodSendMessage, nil)
	require.Error(t, err)
	assert.True(t, errs.Fatal(err))
	assert.ErrorIs(t, err, errs.InsufficientProofOfWork)
	assert.Equal(t, 100, diff.Get())
	assert.False(t, evicted)
	assert.Equal(t, 0, failures.Count(target))
}

// S2 — 421 fails with SnodeMigrated; no failure-table side effect.
func TestInvoke_421FailsWithSnodeMigrated(t *testing.T) {
	target := newTestTarget(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(421)
	})
	failures := failure.New()
	c := New(httpclient.New(), failures, difficulty.New(40))

	_, evicted, err := c.Invoke(context.Background(), target, MethodGetMessages, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.SnodeMigrated)
	assert.False(t, evicted)
	assert.Equal(t, 0, failures.Count(target))
}

// S3 — two consecutive 500s cross the threshold and report eviction.
func TestInvoke_RepeatedFailureCrossesThreshold(t *testing.T) {
	var calls int64
	target := newTestTarget(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	failures := failure.New()
	c := New(httpclient.New(), failures, difficulty.New(40))

	_, evicted, err := c.Invoke(context.Background(), target, MethodSendMessage, nil)
	require.Error(t, err)
	assert.False(t, evicted)
	assert.Equal(t, 1, failures.Count(target))

	_, evicted, err = c.Invoke(context.Background(), target, MethodSendMessage, nil)
	require.Error(t, err)
	assert.True(t, evicted)
	assert.Equal(t, 0, failures.Count(target), "counter resets immediately after eviction")
}

func TestInvoke_400DoesNotEvictButIncrements(t *testing.T) {
	target := newTestTarget(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	failures := failure.New()
	c := New(httpclient.New(), failures, difficulty.New(40))

	_, evicted, err := c.Invoke(context.Background(), target, MethodGetMessages, nil)
	require.Error(t, err)
	assert.False(t, evicted)
	assert.Equal(t, 1, failures.Count(target))
}
