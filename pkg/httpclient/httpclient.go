// Package httpclient is the synchronous/asynchronous JSON-over-HTTPS
// primitive shared by the storage-RPC client, the seed bootstrap call,
// and the open-group REST client.
//
// Two long-lived *http.Transport pools back every request: one validates
// TLS normally (seed nodes, open-group servers), the other accepts any
// certificate and hostname because service nodes present self-signed
// certs — a deliberate trust decision, not an oversight.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/executor"
)

// Verb is an HTTP method accepted by Execute.
type Verb string

const (
	Get    Verb = http.MethodGet
	Put    Verb = http.MethodPut
	Post   Verb = http.MethodPost
	Patch  Verb = http.MethodPatch
	Delete Verb = http.MethodDelete
)

// DefaultTimeout is the connect/read/write timeout applied unless a
// Request overrides it.
const DefaultTimeout = 20 * time.Second

// LongPollTimeout is the read timeout the receive path uses when long
// polling.
const LongPollTimeout = 40 * time.Second

// Request describes a single call through the shared HTTP primitive.
type Request struct {
	Verb    Verb
	URL     string
	Params  map[string]any
	Headers map[string]string

	// UseSeedConnection selects the validating TLS pool. false selects the
	// permissive service-node pool.
	UseSeedConnection bool

	// Timeout overrides DefaultTimeout when non-zero.
	Timeout time.Duration
}

// Result is the decoded JSON body of a 2xx response, or {"result": body}
// when the body wasn't JSON.
type Result map[string]any

// Client holds the two transport-level connection pools.
type Client struct {
	seedTransport  *http.Transport
	snodeTransport *http.Transport
}

// New constructs the shared HTTP primitive. It should be created once and
// reused for the process lifetime.
func New() *Client {
	return &Client{
		seedTransport: &http.Transport{
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
		snodeTransport: &http.Transport{
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				// Service nodes use self-signed certs; validating against a
				// CA or hostname here would reject every one of them.
				InsecureSkipVerify: true,
			},
		},
	}
}

func (c *Client) httpClient(req Request) *http.Client {
	transport := c.seedTransport
	if !req.UseSeedConnection {
		transport = c.snodeTransport
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// Execute performs req synchronously and returns the decoded JSON body.
func (c *Client) Execute(ctx context.Context, req Request) (Result, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, errs.Wrap(errs.KindGeneric, err)
	}

	resp, err := c.httpClient(req).Do(httpReq)
	if err != nil {
		return nil, errs.NewHTTPRequestFailed(0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewHTTPRequestFailed(resp.StatusCode, nil, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.NewHTTPRequestFailed(resp.StatusCode, body, nil)
	}

	var decoded Result
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{"result": string(body)}, nil
	}
	return decoded, nil
}

// Future carries the eventual result of an ExecuteAsync call.
type Future struct {
	done chan struct{}
	res  Result
	err  error
}

// Wait blocks until the call completes or ctx is done, whichever first.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ExecuteAsync schedules req on pool and returns immediately with a
// Future, preserving the executor assignment of the calling pipeline
// stage.
func (c *Client) ExecuteAsync(ctx context.Context, req Request, pool *executor.Pool) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		_ = pool.Go(ctx, func(ctx context.Context) error {
			f.res, f.err = c.Execute(ctx, req)
			return f.err
		})
		close(f.done)
	}()
	return f
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	switch req.Verb {
	case Get, Delete:
		u, err := url.Parse(req.URL)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}
		q := u.Query()
		for k, v := range req.Params {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		u.RawQuery = q.Encode()

		httpReq, err := http.NewRequestWithContext(ctx, string(req.Verb), u.String(), nil)
		if err != nil {
			return nil, err
		}
		applyHeaders(httpReq, req.Headers)
		return httpReq, nil

	case Put, Post, Patch:
		var body io.Reader
		if req.Params != nil {
			encoded, err := json.Marshal(req.Params)
			if err != nil {
				return nil, fmt.Errorf("encode json body: %w", err)
			}
			body = bytes.NewReader(encoded)
		}
		httpReq, err := http.NewRequestWithContext(ctx, string(req.Verb), req.URL, body)
		if err != nil {
			return nil, err
		}
		if body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		applyHeaders(httpReq, req.Headers)
		return httpReq, nil

	default:
		return nil, fmt.Errorf("unsupported verb %q", req.Verb)
	}
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

// IsOpaqueBody reports whether a decoded Result came from the
// non-JSON-body fallback path, i.e. has exactly the synthetic "result" key.
func IsOpaqueBody(r Result) (string, bool) {
	if len(r) != 1 {
		return "", false
	}
	s, ok := r["result"].(string)
	return s, ok
}
