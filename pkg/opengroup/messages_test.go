package opengroup

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessagesTestClient(store *memstore.Store, userPriv [32]byte, priv ed25519.PrivateKey) *Client {
	return New(Config{
		HTTP:                httpclient.New(),
		Tokens:              store,
		Cursors:             store,
		Misc:                store,
		UserPublicKeyHex:    "05aa",
		ChallengePrivateKey: userPriv[:],
		SigningKey:          priv,
	})
}

func TestPostMessage_SignsAndReparsesEcho(t *testing.T) {
	var userPriv [32]byte
	_, _ = rand.Read(userPriv[:])
	ts := newTestServer(t, userPriv)

	store := memstore.New()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	author := hex.EncodeToString(pub)

	srv := httptest.NewServer(ts.handler(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/channels/1/messages" && r.Method == http.MethodPost {
			sig := signForTest(priv, author, "hello", 5000)
			body := `{"data":{"id":9,"text":"hello","created_at":"2024-01-01T00:00:00Z",` +
				`"user":{"username":"` + author + `"},"annotations":[{"type":"network.loki.messenger.publicChat",` +
				`"value":{"timestamp":5000,"sig":"` + base64.StdEncoding.EncodeToString(sig) + `","sigver":1}}]}}`
			_, werr := w.Write([]byte(body))
			require.NoError(t, werr)
			return true
		}
		return false
	}))
	t.Cleanup(srv.Close)

	c := newMessagesTestClient(store, userPriv, priv)

	msg, err := c.PostMessage(context.Background(), srv.URL, 1, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(9), msg.ServerID)
	assert.Equal(t, "hello", msg.Text)
}

func TestDeleteMessage_404IsIdempotent(t *testing.T) {
	var userPriv [32]byte
	_, _ = rand.Read(userPriv[:])
	ts := newTestServer(t, userPriv)

	store := memstore.New()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	srv := httptest.NewServer(ts.handler(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return true
		}
		return false
	}))
	t.Cleanup(srv.Close)

	c := newMessagesTestClient(store, userPriv, priv)

	err = c.DeleteMessage(context.Background(), srv.URL, 1, 42, false)
	assert.NoError(t, err, "a 404 on delete should be treated as already-deleted")
}

func TestDeleteMessages_BulkUsesModeratorEndpointWhenRequested(t *testing.T) {
	var userPriv [32]byte
	_, _ = rand.Read(userPriv[:])
	ts := newTestServer(t, userPriv)

	store := memstore.New()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var sawPath string
	srv := httptest.NewServer(ts.handler(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodDelete {
			sawPath = r.URL.Path
			w.Write([]byte(`{}`))
			return true
		}
		return false
	}))
	t.Cleanup(srv.Close)

	c := newMessagesTestClient(store, userPriv, priv)

	err = c.DeleteMessages(context.Background(), srv.URL, []int64{1, 2, 3}, true)
	require.NoError(t, err)
	assert.Equal(t, "/loki/v1/moderation/messages", sawPath)
}
