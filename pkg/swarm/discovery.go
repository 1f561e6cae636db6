package swarm

import (
	"context"
	"errors"
	"fmt"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/jsonutil"
	"github.com/oxen-io/session-network-core/pkg/log"
	"github.com/oxen-io/session-network-core/pkg/metrics"
	"github.com/oxen-io/session-network-core/pkg/storage"
	"github.com/oxen-io/session-network-core/pkg/storagerpc"
	"github.com/oxen-io/session-network-core/pkg/types"
)

// Discovery maintains a RandomPool and per-key swarm caches, and wraps
// storagerpc.Client.Invoke with the eviction side effects the
// status-code policy assigns to it.
type Discovery struct {
	Pool  *RandomPool
	rpc   *storagerpc.Client
	store storage.SwarmCacheStore
}

// New constructs a Discovery sharing the given RandomPool, storage-RPC
// client, and swarm-cache store with the rest of the process.
func New(pool *RandomPool, rpc *storagerpc.Client, store storage.SwarmCacheStore) *Discovery {
	return &Discovery{Pool: pool, rpc: rpc, store: store}
}

// GetSwarm returns pubKey's swarm, refreshing it from a random service
// node when the persisted swarm is smaller than types.MinimumSnodeCount.
func (d *Discovery) GetSwarm(ctx context.Context, pubKey string) ([]types.ServiceNode, error) {
	cached, err := d.store.GetSwarmCache(pubKey)
	if err != nil {
		return nil, fmt.Errorf("load swarm cache: %w", err)
	}
	if len(cached) >= types.MinimumSnodeCount {
		return cached, nil
	}
	return d.refreshSwarm(ctx, pubKey)
}

func (d *Discovery) refreshSwarm(ctx context.Context, pubKey string) ([]types.ServiceNode, error) {
	probe, err := d.Pool.Sample(ctx)
	if err != nil {
		return nil, err
	}

	res, evicted, err := d.rpc.Invoke(ctx, probe, storagerpc.MethodGetSwarm, map[string]any{"pubKey": pubKey})
	if evicted {
		d.Pool.Remove(probe)
	}
	if err != nil {
		return nil, err
	}

	nodes, err := parseSwarmResult(res)
	if err != nil {
		return nil, err
	}

	if err := d.store.SetSwarmCache(pubKey, nodes); err != nil {
		return nil, fmt.Errorf("persist swarm cache: %w", err)
	}
	metrics.SwarmSize.WithLabelValues(logPubKeyLabel(pubKey)).Set(float64(len(nodes)))
	log.WithPubKey(pubKey).Info().Int("size", len(nodes)).Msg("refreshed swarm")
	return nodes, nil
}

// parseSwarmResult extracts result.snodes[*].{ip, port} from a GetSwarm
// response. port arrives as a string or a number; both parse.
func parseSwarmResult(res httpclient.Result) ([]types.ServiceNode, error) {
	raw, ok := res["snodes"].([]any)
	if !ok {
		return nil, errParsingFailed("GetSwarm response missing snodes array")
	}
	nodes := make([]types.ServiceNode, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		ip, _ := m["ip"].(string)
		if ip == "" || ip == "0.0.0.0" {
			continue
		}
		port, err := numericPort(m["port"])
		if err != nil {
			continue
		}
		nodes = append(nodes, types.ServiceNode{Address: "https://" + ip, Port: port})
	}
	return nodes, nil
}

// numericPort accepts a port as a JSON number or a numeric string (the
// GetSwarm wire format sends it as a string; the seed bootstrap sends a
// number) via the shared multi-typed numeric parser.
func numericPort(v any) (int, error) {
	n, err := jsonutil.ParseInt64(v)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// GetSingleTargetSnode returns a cryptographically shuffled pick from
// pubKey's swarm.
func (d *Discovery) GetSingleTargetSnode(ctx context.Context, pubKey string) (types.ServiceNode, error) {
	swarm, err := d.GetSwarm(ctx, pubKey)
	if err != nil {
		return types.ServiceNode{}, err
	}
	if len(swarm) == 0 {
		return types.ServiceNode{}, errGeneric("swarm is empty after refresh")
	}
	shuffled, err := shuffle(swarm)
	if err != nil {
		return types.ServiceNode{}, err
	}
	return shuffled[0], nil
}

// GetTargetSnodes returns a cryptographically shuffled prefix of pubKey's
// swarm of length types.TargetSnodeCount, or the whole swarm if smaller.
func (d *Discovery) GetTargetSnodes(ctx context.Context, pubKey string) ([]types.ServiceNode, error) {
	swarm, err := d.GetSwarm(ctx, pubKey)
	if err != nil {
		return nil, err
	}
	if len(swarm) == 0 {
		return nil, errGeneric("swarm is empty after refresh")
	}
	shuffled, err := shuffle(swarm)
	if err != nil {
		return nil, err
	}
	n := types.TargetSnodeCount
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n], nil
}

// Invoke calls method against target on behalf of pubKey's swarm,
// applying the full eviction policy: a threshold crossing removes target
// from both pubKey's swarm cache and the RandomPool; a 421 removes it
// from pubKey's swarm cache only.
func (d *Discovery) Invoke(ctx context.Context, pubKey string, target types.ServiceNode, method string, params map[string]any, opts ...storagerpc.Option) (httpclient.Result, error) {
	res, evicted, err := d.rpc.Invoke(ctx, target, method, params, opts...)
	if evicted {
		d.evictFromSwarmCache(pubKey, target)
		d.Pool.Remove(target)
	} else if err != nil && errors.Is(err, errs.SnodeMigrated) {
		d.evictFromSwarmCache(pubKey, target)
	}
	return res, err
}

func (d *Discovery) evictFromSwarmCache(pubKey string, target types.ServiceNode) {
	cached, err := d.store.GetSwarmCache(pubKey)
	if err != nil {
		log.WithPubKey(pubKey).Warn().Err(err).Msg("could not load swarm cache for eviction")
		return
	}
	remaining := make([]types.ServiceNode, 0, len(cached))
	for _, n := range cached {
		if n.Key() != target.Key() {
			remaining = append(remaining, n)
		}
	}
	if len(remaining) == len(cached) {
		return
	}
	if err := d.store.SetSwarmCache(pubKey, remaining); err != nil {
		log.WithPubKey(pubKey).Warn().Err(err).Msg("could not persist swarm cache after eviction")
		return
	}
	metrics.SwarmSize.WithLabelValues(logPubKeyLabel(pubKey)).Set(float64(len(remaining)))
}

// logPubKeyLabel truncates a public key for use as a low-cardinality
// metric label; full keys would otherwise unbound the series count.
func logPubKeyLabel(pubKey string) string {
	if len(pubKey) <= 12 {
		return pubKey
	}
	return pubKey[:12]
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

func errGeneric(msg string) error {
	return errs.Wrap(errs.KindGeneric, sentinelErr(msg))
}

func errParsingFailed(msg string) error {
	return errs.NewParsingFailed(sentinelErr(msg))
}
