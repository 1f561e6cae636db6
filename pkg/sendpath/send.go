// Package sendpath implements the outbound message delivery pipeline:
// wire conversion, peer-to-peer vs. swarm path selection, proof-of-work
// computation, and concurrent broadcast to a message's target swarm
// members.
package sendpath

import (
	"context"
	"fmt"

	"github.com/oxen-io/session-network-core/pkg/difficulty"
	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/executor"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/jsonutil"
	"github.com/oxen-io/session-network-core/pkg/log"
	"github.com/oxen-io/session-network-core/pkg/metrics"
	"github.com/oxen-io/session-network-core/pkg/pow"
	"github.com/oxen-io/session-network-core/pkg/retry"
	"github.com/oxen-io/session-network-core/pkg/storagerpc"
	"github.com/oxen-io/session-network-core/pkg/swarm"
	"github.com/oxen-io/session-network-core/pkg/types"

	"github.com/google/uuid"
)

// Path identifies which delivery path a send used.
type Path string

const (
	PathP2P   Path = "p2p"
	PathSwarm Path = "swarm"
)

// TargetResult is the outcome of a single swarm-path RPC.
type TargetResult struct {
	Target types.ServiceNode
	Err    error
}

// Result is the overall outcome of Sender.Send.
type Result struct {
	Path    Path
	Targets []TargetResult // populated only for PathSwarm
}

// OnP2PSuccess is invoked when a direct peer-to-peer send succeeds.
type OnP2PSuccess func(peer types.Peer)

// Sender implements the send path against a shared swarm.Discovery,
// PeerTable, and DifficultyState.
type Sender struct {
	http      *httpclient.Client
	discovery *swarm.Discovery
	diff      *difficulty.State
	peers     *PeerTable
	pools     *executor.Pools
}

// New constructs a Sender sharing the given process-wide services.
func New(http *httpclient.Client, discovery *swarm.Discovery, diff *difficulty.State, peers *PeerTable, pools *executor.Pools) *Sender {
	return &Sender{http: http, discovery: discovery, diff: diff, peers: peers, pools: pools}
}

// Send delivers msg, preferring the direct peer-to-peer path when a
// known-online peer exists (or msg is a ping), and falling through to a
// swarm broadcast otherwise.
func (s *Sender) Send(ctx context.Context, msg types.Message, onSuccess OnP2PSuccess) (Result, error) {
	wire, err := toWire(msg)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindMessageConversionFailed, err)
	}

	if peer, ok := s.peers.Get(msg.Destination); ok && (msg.Ping || peer.Online) {
		err := retry.Do(ctx, "sendpath.p2p", func(ctx context.Context) error {
			return s.sendToPeer(ctx, peer, wire)
		})
		if err == nil {
			s.peers.MarkOnline(msg.Destination)
			metrics.MessagesSentTotal.WithLabelValues(string(PathP2P)).Inc()
			if onSuccess != nil {
				onSuccess(peer)
			}
			return Result{Path: PathP2P}, nil
		}
		s.peers.MarkOffline(msg.Destination)
		log.WithPubKey(msg.Destination).Warn().Err(err).Msg("p2p send failed, falling back to swarm")
	}

	return s.sendViaSwarm(ctx, msg.Destination, wire)
}

// sendToPeer POSTs the wire message directly to a known peer address,
// bypassing swarm discovery and eviction bookkeeping.
func (s *Sender) sendToPeer(ctx context.Context, peer types.Peer, wire types.WireMessage) error {
	target := types.ServiceNode{Address: peer.Address, Port: peer.Port}
	_, err := s.http.Execute(ctx, httpclient.Request{
		Verb: httpclient.Post,
		URL:  target.URL() + "/storage_rpc/v1",
		Params: map[string]any{
			"method": storagerpc.MethodSendMessage,
			"params": sendMessageParams(peer.PublicKey, wire, ""),
		},
	})
	return err
}

// sendViaSwarm computes proof of work once and broadcasts it to every
// target swarm member concurrently.
func (s *Sender) sendViaSwarm(ctx context.Context, destination string, wire types.WireMessage) (Result, error) {
	nonce, err := pow.Calculate(ctx, pow.Input{
		Recipient:  destination,
		TTLMillis:  wire.TTL,
		Timestamp:  wire.Timestamp,
		Data:       wire.Data,
		Difficulty: s.diff.Get(),
	})
	if err != nil {
		return Result{}, errs.Wrap(errs.KindProofOfWorkCalculationFailed, err)
	}

	targets, err := s.discovery.GetTargetSnodes(ctx, destination)
	if err != nil {
		return Result{}, err
	}

	requestID := newRequestID()
	results := make([]TargetResult, len(targets))
	fns := make([]func(ctx context.Context) error, len(targets))
	for i, target := range targets {
		i, target := i, target
		fns[i] = func(ctx context.Context) error {
			err := retry.Do(ctx, "sendpath.swarm", func(ctx context.Context) error {
				res, rerr := s.discovery.Invoke(ctx, destination, target, storagerpc.MethodSendMessage,
					sendMessageParams(destination, wire, nonce),
					storagerpc.WithHeaders(map[string]string{"X-Request-Id": requestID}))
				if rerr != nil {
					return rerr
				}
				s.observeDifficulty(res)
				return nil
			})
			results[i] = TargetResult{Target: target, Err: err}
			return nil // broadcast never aborts siblings on one failure
		}
	}
	_ = s.pools.Network.GoGroup(ctx, fns...)

	anySucceeded := false
	for _, r := range results {
		if r.Err == nil {
			anySucceeded = true
		}
	}
	if anySucceeded {
		metrics.MessagesSentTotal.WithLabelValues(string(PathSwarm)).Inc()
	}
	return Result{Path: PathSwarm, Targets: results}, nil
}

// observeDifficulty updates DifficultyState when a SendMessage response
// carries a "difficulty" field different from the current value.
func (s *Sender) observeDifficulty(res httpclient.Result) {
	d, err := jsonutil.ParseIntField(res, "difficulty")
	if err != nil {
		return
	}
	if int(d) != s.diff.Get() {
		s.diff.Set(int(d))
		metrics.Difficulty.Set(float64(d))
	}
}

func sendMessageParams(destination string, wire types.WireMessage, nonce string) map[string]any {
	params := map[string]any{
		"pubKey":    destination,
		"ttl":       wire.TTL,
		"timestamp": wire.Timestamp,
		"data":      wire.Data,
	}
	if nonce != "" {
		params["nonce"] = nonce
	}
	return params
}

// toWire converts a domain Message into its wire form. A missing
// destination or empty body is a conversion failure.
func toWire(msg types.Message) (types.WireMessage, error) {
	if msg.Destination == "" {
		return types.WireMessage{}, fmt.Errorf("message has no destination")
	}
	if len(msg.Body) == 0 {
		return types.WireMessage{}, fmt.Errorf("message has empty body")
	}
	ttlMillis := msg.TTL.Milliseconds()
	if ttlMillis <= 0 {
		return types.WireMessage{}, fmt.Errorf("message has non-positive TTL")
	}
	timestamp := msg.Timestamp
	if timestamp.IsZero() {
		return types.WireMessage{}, fmt.Errorf("message has zero timestamp")
	}

	return types.WireMessage{
		Destination: msg.Destination,
		Data:        msg.Body,
		TTL:         ttlMillis,
		Timestamp:   timestamp.UnixMilli(),
	}, nil
}

// newRequestID generates a per-call tracing id.
func newRequestID() string {
	return uuid.NewString()
}
