// Package opengroup implements the authenticated REST client for
// server-hosted open-group chat rooms: challenge-based
// auth with in-flight dedup, message/deletion polling with cursor
// tracking, moderator state, and the remaining ADN-style endpoints. It
// shares the HTTP primitive (pkg/httpclient) and retry wrapper
// (pkg/retry) with the swarm-RPC substrate but is otherwise independent
// of it.
package opengroup

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/log"
	"github.com/oxen-io/session-network-core/pkg/metrics"
	"github.com/oxen-io/session-network-core/pkg/retry"
	"github.com/oxen-io/session-network-core/pkg/sessioncrypto"
	"github.com/oxen-io/session-network-core/pkg/storage"
	"github.com/oxen-io/session-network-core/pkg/types"
)

// Config configures a Client. UserPublicKeyHex identifies the caller to
// the challenge endpoint; ChallengePrivateKey is the Curve25519 key used
// to derive the ECDH shared secret; SigningKey signs outbound messages.
// Verify defaults to sessioncrypto.VerifyOpenGroupMessage when nil.
type Config struct {
	HTTP                *httpclient.Client
	Tokens              storage.AuthTokenStore
	Cursors             storage.OpenGroupCursorStore
	Misc                storage.OpenGroupMiscStore
	UserPublicKeyHex    string
	ChallengePrivateKey []byte
	SigningKey          ed25519.PrivateKey
	Verify              types.SignatureVerifier
}

type modKey struct {
	server  string
	channel int64
}

type inflightChallenge struct {
	done  chan struct{}
	token string
	err   error
}

// Client is the open-group REST client for one logical caller identity,
// usable against any number of servers/channels.
type Client struct {
	http                *httpclient.Client
	tokens              storage.AuthTokenStore
	cursors             storage.OpenGroupCursorStore
	misc                storage.OpenGroupMiscStore
	userPublicKeyHex    string
	challengePrivateKey []byte
	signingKey          ed25519.PrivateKey
	verify              types.SignatureVerifier

	modMu      sync.RWMutex
	moderators map[modKey][]types.Moderator

	challengeMu sync.Mutex
	inflight    map[string]*inflightChallenge
}

// New constructs a Client from cfg.
func New(cfg Config) *Client {
	verify := cfg.Verify
	if verify == nil {
		verify = sessioncrypto.VerifyOpenGroupMessage
	}
	return &Client{
		http:                cfg.HTTP,
		tokens:              cfg.Tokens,
		cursors:             cfg.Cursors,
		misc:                cfg.Misc,
		userPublicKeyHex:    cfg.UserPublicKeyHex,
		challengePrivateKey: cfg.ChallengePrivateKey,
		signingKey:          cfg.SigningKey,
		verify:              verify,
		moderators:          make(map[modKey][]types.Moderator),
		inflight:            make(map[string]*inflightChallenge),
	}
}

// token returns server's cached bearer token, running the challenge
// exchange if none is cached.
func (c *Client) token(ctx context.Context, server string) (string, error) {
	if tok, ok, err := c.tokens.GetAuthToken(server); err == nil && ok {
		return tok, nil
	}
	return c.exchangeChallenge(ctx, server)
}

// exchangeChallenge runs the GET get_challenge / POST submit_challenge
// dance, deduplicating concurrent callers for the same server behind a
// single in-flight request.
func (c *Client) exchangeChallenge(ctx context.Context, server string) (string, error) {
	c.challengeMu.Lock()
	if inf, ok := c.inflight[server]; ok {
		c.challengeMu.Unlock()
		select {
		case <-inf.done:
			return inf.token, inf.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	inf := &inflightChallenge{done: make(chan struct{})}
	c.inflight[server] = inf
	c.challengeMu.Unlock()

	inf.token, inf.err = c.doChallenge(ctx, server)

	c.challengeMu.Lock()
	delete(c.inflight, server)
	c.challengeMu.Unlock()
	close(inf.done)

	return inf.token, inf.err
}

func (c *Client) doChallenge(ctx context.Context, server string) (string, error) {
	res, err := c.http.Execute(ctx, httpclient.Request{
		Verb:              httpclient.Get,
		URL:               server + "/loki/v1/get_challenge",
		Params:            map[string]any{"pubKey": c.userPublicKeyHex},
		UseSeedConnection: true,
	})
	if err != nil {
		return "", err
	}

	cipherTextB64, _ := res["cipherText64"].(string)
	serverPubB64, _ := res["serverPubKey64"].(string)
	if cipherTextB64 == "" || serverPubB64 == "" {
		return "", errs.NewParsingFailed(fmt.Errorf("get_challenge response missing cipherText64/serverPubKey64"))
	}

	cipherText, err := base64.StdEncoding.DecodeString(cipherTextB64)
	if err != nil {
		return "", errs.NewParsingFailed(fmt.Errorf("decode cipherText64: %w", err))
	}
	serverPubRaw, err := base64.StdEncoding.DecodeString(serverPubB64)
	if err != nil {
		return "", errs.NewParsingFailed(fmt.Errorf("decode serverPubKey64: %w", err))
	}
	serverPub, err := sessioncrypto.NormalizeServerPubKey(serverPubRaw)
	if err != nil {
		return "", err
	}

	plaintext, err := sessioncrypto.DecryptChallenge(c.challengePrivateKey, serverPub, cipherText)
	if err != nil {
		return "", err
	}
	token := string(plaintext)

	_, err = c.http.Execute(ctx, httpclient.Request{
		Verb:              httpclient.Post,
		URL:               server + "/loki/v1/submit_challenge",
		Params:            map[string]any{"pubKey": c.userPublicKeyHex, "token": token},
		UseSeedConnection: true,
	})
	if err != nil {
		return "", err
	}

	if err := c.tokens.SetAuthToken(server, token); err != nil {
		return "", fmt.Errorf("persist auth token: %w", err)
	}
	log.WithServer(server).Info().Msg("completed open-group challenge exchange")
	return token, nil
}

// authedRequest runs req against server with a bearer token attached,
// clearing and failing with errs.TokenExpired on a 401.
func (c *Client) authedRequest(ctx context.Context, server string, req httpclient.Request) (httpclient.Result, error) {
	tok, err := c.token(ctx, server)
	if err != nil {
		return nil, err
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers["Authorization"] = "Bearer " + tok

	res, err := c.http.Execute(ctx, req)
	if err == nil {
		return res, nil
	}

	var httpErr *errs.Error
	if errors.As(err, &httpErr) && httpErr.StatusCode == 401 {
		if clearErr := c.tokens.ClearAuthToken(server); clearErr != nil {
			log.WithServer(server).Warn().Err(clearErr).Msg("failed to clear expired auth token")
		}
		return nil, errs.Wrap(errs.KindTokenExpired, httpErr)
	}
	return nil, err
}

// call wraps a single authenticated REST request with the bounded retry
// wrapper and endpoint-labeled metrics.
func (c *Client) call(ctx context.Context, endpoint, server string, req httpclient.Request) (httpclient.Result, error) {
	var res httpclient.Result
	err := retry.Do(ctx, "opengroup", func(ctx context.Context) error {
		var callErr error
		res, callErr = c.authedRequest(ctx, server, req)
		return callErr
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.OpenGroupRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	return res, err
}
