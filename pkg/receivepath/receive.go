// Package receivepath implements the inbound polling pipeline: obtain a single swarm target, call GetMessages with the
// persisted cursor, advance the cursor from the last response entry,
// deduplicate against the received-hash set, and decode each surviving
// entry's base64 payload into an Envelope.
package receivepath

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/log"
	"github.com/oxen-io/session-network-core/pkg/metrics"
	"github.com/oxen-io/session-network-core/pkg/storage"
	"github.com/oxen-io/session-network-core/pkg/storagerpc"
	"github.com/oxen-io/session-network-core/pkg/swarm"
	"github.com/oxen-io/session-network-core/pkg/types"
)

// longPollHeader switches a service node into long-poll mode for this
// call.
const longPollHeader = "X-Loki-Long-Poll"

// Receiver polls a single public key's swarm for new messages.
type Receiver struct {
	discovery *swarm.Discovery
	hashes    storage.LastMessageHashStore
	received  storage.ReceivedHashStore
	longPoll  bool
}

// New constructs a Receiver sharing the given swarm.Discovery and
// persistence stores.
func New(discovery *swarm.Discovery, hashes storage.LastMessageHashStore, received storage.ReceivedHashStore) *Receiver {
	return &Receiver{discovery: discovery, hashes: hashes, received: received}
}

// WithLongPoll returns a copy of r configured to set the long-poll header
// and raise the RPC timeout to httpclient.LongPollTimeout.
func (r *Receiver) WithLongPoll(enabled bool) *Receiver {
	cp := *r
	cp.longPoll = enabled
	return &cp
}

// GetMessages fetches and decodes new envelopes for pubKey, deduplicating
// against the ReceivedHashSet and advancing LastMessageHash from the last
// entry of the response.
func (r *Receiver) GetMessages(ctx context.Context, pubKey string) ([]types.Envelope, error) {
	target, err := r.discovery.GetSingleTargetSnode(ctx, pubKey)
	if err != nil {
		return nil, err
	}

	lastHash, _, err := r.hashes.GetLastMessageHash(target)
	if err != nil {
		return nil, fmt.Errorf("load last message hash: %w", err)
	}

	opts := []storagerpc.Option{}
	if r.longPoll {
		opts = append(opts,
			storagerpc.WithHeaders(map[string]string{longPollHeader: "true"}),
			storagerpc.WithTimeout(httpclient.LongPollTimeout),
		)
	}

	res, err := r.discovery.Invoke(ctx, pubKey, target, storagerpc.MethodGetMessages,
		map[string]any{"pubKey": pubKey, "lastHash": lastHash}, opts...)
	if err != nil {
		return nil, err
	}

	raw, err := parseMessages(res)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	if last := raw[len(raw)-1]; last.Hash != "" {
		if err := r.hashes.SetLastMessageHash(target, last.Hash); err != nil {
			return nil, fmt.Errorf("persist last message hash: %w", err)
		}
	}

	envelopes := make([]types.Envelope, 0, len(raw))
	for _, m := range raw {
		if m.Hash == "" {
			continue
		}
		seen, err := r.received.HasReceivedHash(m.Hash)
		if err != nil {
			log.WithPubKey(pubKey).Warn().Err(err).Msg("failed to check received-hash set, skipping entry")
			continue
		}
		if seen {
			continue
		}
		if err := r.received.AddReceivedHash(m.Hash); err != nil {
			log.WithPubKey(pubKey).Warn().Err(err).Msg("failed to record received hash, skipping entry")
			continue
		}

		data, err := base64.StdEncoding.DecodeString(m.Data)
		if err != nil {
			log.WithPubKey(pubKey).Warn().Err(err).Str("hash", m.Hash).Msg("discarding message with undecodable data")
			continue
		}

		envelopes = append(envelopes, types.Envelope{Hash: m.Hash, Data: data})
		metrics.MessagesReceivedTotal.Inc()
	}
	return envelopes, nil
}

// parseMessages extracts the messages[] array from a GetMessages response,
// tolerating entries missing hash or data (logged and skipped downstream
// rather than failing the whole batch).
func parseMessages(res httpclient.Result) ([]types.IncomingMessage, error) {
	raw, ok := res["messages"].([]any)
	if !ok {
		// An empty or absent messages array means "nothing new", not a
		// parse failure.
		return nil, nil
	}
	out := make([]types.IncomingMessage, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		hash, _ := m["hash"].(string)
		data, _ := m["data"].(string)
		out = append(out, types.IncomingMessage{Hash: hash, Data: data})
	}
	return out, nil
}
