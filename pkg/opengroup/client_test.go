package opengroup

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// testServer wires a challenge-authenticated handler: a fixed server
// keypair, HMAC-free since sessioncrypto handles the real ECDH+AES-GCM
// work, and a token that starts valid and can be revoked mid-test.
type testServer struct {
	serverPriv [32]byte
	serverPub  []byte
	userPub    []byte

	tokenValid atomic.Bool
	challenges atomic.Int32
}

func newTestServer(t *testing.T, userPriv [32]byte) *testServer {
	t.Helper()
	ts := &testServer{}
	_, err := rand.Read(ts.serverPriv[:])
	require.NoError(t, err)
	pub, err := curve25519.X25519(ts.serverPriv[:], curve25519.Basepoint)
	require.NoError(t, err)
	ts.serverPub = pub
	userPub, err := curve25519.X25519(userPriv[:], curve25519.Basepoint)
	require.NoError(t, err)
	ts.userPub = userPub
	ts.tokenValid.Store(true)
	return ts
}

func (ts *testServer) handler(t *testing.T, extra func(w http.ResponseWriter, r *http.Request) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/loki/v1/get_challenge":
			ts.challenges.Add(1)
			shared, err := curve25519.X25519(ts.serverPriv[:], ts.userPub)
			require.NoError(t, err)
			key := hkdfKeyForTest(t, shared)
			block, err := aes.NewCipher(key)
			require.NoError(t, err)
			gcm, err := cipher.NewGCM(block)
			require.NoError(t, err)
			nonce := make([]byte, 12)
			_, _ = rand.Read(nonce)
			sealed := gcm.Seal(nil, nonce, []byte("test-token-123"), nil)
			cipherText := append(append([]byte{}, nonce...), sealed...)
			fmt.Fprintf(w, `{"cipherText64":%q,"serverPubKey64":%q}`,
				base64.StdEncoding.EncodeToString(cipherText),
				base64.StdEncoding.EncodeToString(ts.serverPub))
			return
		case r.URL.Path == "/loki/v1/submit_challenge":
			w.Write([]byte(`{}`))
			return
		}

		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token-123" || !ts.tokenValid.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if extra != nil && extra(w, r) {
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}
}

// hkdfKeyForTest mirrors sessioncrypto's unexported deriveKey so the fake
// server here can produce a ciphertext the client's DecryptChallenge
// actually unseals; the HKDF info string must match exactly.
func hkdfKeyForTest(t *testing.T, shared []byte) []byte {
	t.Helper()
	r := hkdf.New(sha256.New, shared, nil, []byte("loki-open-group-challenge"))
	key := make([]byte, 32)
	_, err := io.ReadFull(r, key)
	require.NoError(t, err)
	return key
}

// signForTest mirrors sessioncrypto's unexported signaturePayload so this
// test can produce signatures VerifyOpenGroupMessage will accept.
func signForTest(priv ed25519.PrivateKey, author, text string, timestampMillis int64) []byte {
	buf := make([]byte, 0, len(author)+len(text)+8)
	buf = append(buf, author...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(timestampMillis))
	buf = append(buf, ts[:]...)
	buf = append(buf, text...)
	return ed25519.Sign(priv, buf)
}

func newClient(srv *httptest.Server, userPriv [32]byte, store *memstore.Store) *Client {
	_, priv, _ := ed25519.GenerateKey(nil)
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

func TestGetModerators_CachesAfterFirstFetch(t *testing.T) {
	var userPriv [32]byte
	_, _ = rand.Read(userPriv[:])
	ts := newTestServer(t, userPriv)

	calls := 0
	srv := httptest.NewServer(ts.handler(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/loki/v1/channel/1/get_moderators" {
			calls++
			w.Write([]byte(`{"moderators":["05aa","05bb"]}`))
			return true
		}
		return false
	}))
	t.Cleanup(srv.Close)

	store := memstore.New()
	c := newClient(srv, userPriv, store)

	mods, err := c.GetModerators(context.Background(), srv.URL, 1)
	require.NoError(t, err)
	assert.Len(t, mods, 2)

	_, err = c.GetModerators(context.Background(), srv.URL, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call should hit the cache")
}

func TestAuthedRequest_401ClearsTokenAndFailsWithTokenExpired(t *testing.T) {
	var userPriv [32]byte
	_, _ = rand.Read(userPriv[:])
	ts := newTestServer(t, userPriv)
	srv := httptest.NewServer(ts.handler(t, nil))
	t.Cleanup(srv.Close)

	store := memstore.New()
	c := newClient(srv, userPriv, store)

	_, err := c.GetModerators(context.Background(), srv.URL, 1)
	require.NoError(t, err)

	ts.tokenValid.Store(false)
	_, _, ok := mustGetToken(t, store, srv.URL)
	assert.True(t, ok, "token is cached after the first successful call")

	c.InvalidateModerators(srv.URL, 1)
	_, err = c.GetModerators(context.Background(), srv.URL, 1)
	assert.Error(t, err)

	_, ok2, _ := store.GetAuthToken(srv.URL)
	assert.False(t, ok2, "token is cleared after a 401")
}

func mustGetToken(t *testing.T, store *memstore.Store, server string) (string, bool, error) {
	t.Helper()
	tok, ok, err := store.GetAuthToken(server)
	require.NoError(t, err)
	return tok, ok, err
}

func TestChallengeDedup_ConcurrentCallersShareOneExchange(t *testing.T) {
	var userPriv [32]byte
	_, _ = rand.Read(userPriv[:])
	ts := newTestServer(t, userPriv)
	srv := httptest.NewServer(ts.handler(t, nil))
	t.Cleanup(srv.Close)

	store := memstore.New()
	c := newClient(srv, userPriv, store)

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := c.token(context.Background(), srv.URL)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, int32(1), ts.challenges.Load(), "only one challenge exchange should have occurred")
}

func TestFetchMessages_SortsByServerTimestampAndAdvancesCursor(t *testing.T) {
	var userPriv [32]byte
	_, _ = rand.Read(userPriv[:])
	ts := newTestServer(t, userPriv)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	author := fmt.Sprintf("%x", pub)

	sigFor := func(text string, ts int64) string {
		sig := signForTest(priv, author, text, ts)
		return base64.StdEncoding.EncodeToString(sig)
	}

	t2 := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339Nano)
	t1 := time.Now().Add(-2 * time.Minute).UTC().Format(time.RFC3339Nano)

	body := fmt.Sprintf(`{"data":[
		{"id":2,"text":"second","created_at":%q,"user":{"username":%q},
		 "annotations":[{"type":"network.loki.messenger.publicChat","value":{"timestamp":2000,"sig":%q,"sigver":1}}]},
		{"id":1,"text":"first","created_at":%q,"user":{"username":%q},
		 "annotations":[{"type":"network.loki.messenger.publicChat","value":{"timestamp":1000,"sig":%q,"sigver":1}}]}
	]}`, t2, author, sigFor("second", 2000), t1, author, sigFor("first", 1000))

	srv := httptest.NewServer(ts.handler(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/channels/1/messages" {
			w.Write([]byte(body))
			return true
		}
		return false
	}))
	t.Cleanup(srv.Close)

	store := memstore.New()
	c := newClient(srv, userPriv, store)

	msgs, err := c.FetchMessages(context.Background(), srv.URL, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)

	id, err := store.GetLastMessageServerID(1, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestFetchMessages_DiscardsInvalidSignature(t *testing.T) {
	var userPriv [32]byte
	_, _ = rand.Read(userPriv[:])
	ts := newTestServer(t, userPriv)

	body := `{"data":[{"id":1,"text":"hi","created_at":"2024-01-01T00:00:00Z","user":{"username":"05zz"},
		"annotations":[{"type":"network.loki.messenger.publicChat","value":{"timestamp":1000,"sig":"aGVsbG8=","sigver":1}}]}]}`

	srv := httptest.NewServer(ts.handler(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/channels/1/messages" {
			w.Write([]byte(body))
			return true
		}
		return false
	}))
	t.Cleanup(srv.Close)

	store := memstore.New()
	c := newClient(srv, userPriv, store)

	msgs, err := c.FetchMessages(context.Background(), srv.URL, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
