// Package storagerpc invokes named methods against a single service node
// and applies the authoritative status-code policy: which errors are
// distinguished, which increment the FailureTable, and when the
// DifficultyState gets updated as a side effect.
//
// Eviction itself (removing a target from a key's swarm cache and from
// the random pool) is not performed here — Invoke reports when the
// failure threshold was crossed via its evicted return value, and the
// caller (which already holds the swarm.Discovery for the relevant key)
// performs the removal. This keeps the package free of any dependency on
// swarm discovery.
package storagerpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oxen-io/session-network-core/pkg/difficulty"
	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/failure"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/jsonutil"
	"github.com/oxen-io/session-network-core/pkg/log"
	"github.com/oxen-io/session-network-core/pkg/metrics"
	"github.com/oxen-io/session-network-core/pkg/types"
)

// Known RPC method names.
const (
	MethodGetSwarm    = "GetSwarm"
	MethodGetMessages = "GetMessages"
	MethodSendMessage = "SendMessage"
)

// Client invokes storage_rpc/v1 methods against a chosen target.
type Client struct {
	http     *httpclient.Client
	failures *failure.Table
	diff     *difficulty.State
}

// New constructs a Client sharing the given HTTP primitive, FailureTable,
// and DifficultyState with the rest of the process.
func New(http *httpclient.Client, failures *failure.Table, diff *difficulty.State) *Client {
	return &Client{http: http, failures: failures, diff: diff}
}

// Invoke POSTs {"method": method, "params": params} to target's
// storage_rpc/v1 endpoint, applying the status-code policy above.
// evicted reports whether target just crossed the failure threshold and
// must be removed from both the swarm cache and the random pool by the
// caller.
func (c *Client) Invoke(ctx context.Context, target types.ServiceNode, method string, params map[string]any, opts ...Option) (httpclient.Result, bool, error) {
	cfg := applyOptions(opts)

	timer := metrics.NewTimer()
	res, err := c.http.Execute(ctx, httpclient.Request{
		Verb:              httpclient.Post,
		URL:               target.URL() + "/storage_rpc/v1",
		Params:            map[string]any{"method": method, "params": params},
		Headers:           cfg.headers,
		Timeout:           cfg.timeout,
		UseSeedConnection: false,
	})
	timer.ObserveDurationVec(metrics.RPCDuration, method)

	if err == nil {
		metrics.RPCRequestsTotal.WithLabelValues(method, "ok").Inc()
		return res, false, nil
	}

	var httpErr *errs.Error
	if !errors.As(err, &httpErr) {
		metrics.RPCRequestsTotal.WithLabelValues(method, "parse_error").Inc()
		return nil, false, errs.NewParsingFailed(err)
	}

	switch httpErr.StatusCode {
	case 0:
		// Transport error: connect or timeout.
		count := c.failures.Increment(target)
		metrics.RPCRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		return nil, c.maybeEvict(target, count), httpErr

	case 400:
		count := c.failures.Increment(target)
		metrics.RPCRequestsTotal.WithLabelValues(method, "http_400").Inc()
		return nil, c.maybeEvict(target, count), errs.Wrap(errs.KindGeneric, httpErr)

	case 421:
		metrics.RPCRequestsTotal.WithLabelValues(method, "http_421").Inc()
		return nil, false, errs.Wrap(errs.KindSnodeMigrated, httpErr)

	case 432:
		metrics.RPCRequestsTotal.WithLabelValues(method, "http_432").Inc()
		if d, perr := parseDifficulty(httpErr.Body); perr == nil {
			c.diff.Set(int(d))
			metrics.Difficulty.Set(float64(d))
		} else {
			log.WithComponent("storagerpc").Warn().Err(perr).Msg("432 response carried non-numeric difficulty")
		}
		return nil, false, errs.Wrap(errs.KindInsufficientProofOfWork, httpErr)

	case 500, 503:
		count := c.failures.Increment(target)
		metrics.RPCRequestsTotal.WithLabelValues(method, fmt.Sprintf("http_%d", httpErr.StatusCode)).Inc()
		return nil, c.maybeEvict(target, count), errs.Wrap(errs.KindGeneric, httpErr)

	default:
		metrics.RPCRequestsTotal.WithLabelValues(method, fmt.Sprintf("http_%d", httpErr.StatusCode)).Inc()
		return nil, false, errs.Wrap(errs.KindGeneric, httpErr)
	}
}

func (c *Client) maybeEvict(target types.ServiceNode, count int) bool {
	if count < types.FailureThreshold {
		return false
	}
	c.failures.Reset(target)
	metrics.SnodeEvictionsTotal.Inc()
	return true
}

// parseDifficulty extracts the "difficulty" field from a 432 response
// body using the flexible numeric parser.
func parseDifficulty(body []byte) (int64, error) {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, errs.NewParsingFailed(err)
	}
	return jsonutil.ParseIntField(decoded, "difficulty")
}

// Option customizes a single Invoke call.
type Option func(*options)

type options struct {
	headers map[string]string
	timeout time.Duration
}

// WithHeaders attaches extra headers, e.g. X-Loki-Long-Poll.
func WithHeaders(h map[string]string) Option {
	return func(o *options) { o.headers = h }
}

// WithTimeout overrides the default 20s RPC timeout, e.g. for long polling.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
