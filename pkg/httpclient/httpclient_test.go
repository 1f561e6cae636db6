package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_GetQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("pubKey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"snodes":[]}`))
	}))
	defer srv.Close()

	c := New()
	res, err := c.Execute(context.Background(), Request{
		Verb:              Get,
		URL:               srv.URL,
		Params:            map[string]any{"pubKey": "abc"},
		UseSeedConnection: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []any{}, res["snodes"])
}

func TestExecute_PostJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New()
	res, err := c.Execute(context.Background(), Request{
		Verb:   Post,
		URL:    srv.URL,
		Params: map[string]any{"method": "GetSwarm"},
	})
	require.NoError(t, err)
	assert.Equal(t, true, res["ok"])
}

func TestExecute_NonJSONBodyWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	c := New()
	res, err := c.Execute(context.Background(), Request{Verb: Get, URL: srv.URL, UseSeedConnection: true})
	require.NoError(t, err)
	assert.Equal(t, "plain text", res["result"])
}

func TestExecute_NonTwoXXSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New()
	_, err := c.Execute(context.Background(), Request{Verb: Get, URL: srv.URL})
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusInternalServerError, e.StatusCode)
	assert.Equal(t, "boom", string(e.Body))
}

func TestExecute_TransportFailureIsStatusZero(t *testing.T) {
	c := New()
	_, err := c.Execute(context.Background(), Request{Verb: Get, URL: "http://127.0.0.1:1"})
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 0, e.StatusCode)
}

func TestExecuteAsync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New()
	pool := executor.NewPool(2)
	fut := c.ExecuteAsync(context.Background(), Request{Verb: Get, URL: srv.URL, UseSeedConnection: true}, pool)
	res, err := fut.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, res["ok"])
}
