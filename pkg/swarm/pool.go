// Package swarm maintains the process-wide RandomPool bootstrapped from
// seed nodes, and per-public-key swarm caches backed by storage.Store.
// It also centralizes the eviction behavior the storage-RPC status-code
// policy demands: a 421 removes a target from one key's swarm; a
// threshold crossing removes it from both that swarm and the RandomPool.
package swarm

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/log"
	"github.com/oxen-io/session-network-core/pkg/metrics"
	"github.com/oxen-io/session-network-core/pkg/types"
)

// DefaultSeeds is the compile-time seed node list. Three URLs, per the reference implementation.
var DefaultSeeds = []string{
	"https://seed1.getsession.org:38157",
	"https://seed2.getsession.org:38157",
	"https://seed3.getsession.org:38157",
}

// seedNServiceNodesLimit bounds the bootstrap response size.
const seedNServiceNodesLimit = 24

// RandomPool is the process-wide set of known service nodes, lazily
// populated from a seed node and sampled uniformly at random.
type RandomPool struct {
	mu    sync.RWMutex
	nodes map[string]types.ServiceNode
	seeds []string
	http  *httpclient.Client
}

// NewRandomPool constructs an empty pool that bootstraps from seeds on
// first use. A nil or empty seeds slice falls back to DefaultSeeds.
func NewRandomPool(http *httpclient.Client, seeds []string) *RandomPool {
	if len(seeds) == 0 {
		seeds = DefaultSeeds
	}
	return &RandomPool{
		nodes: make(map[string]types.ServiceNode),
		seeds: seeds,
		http:  http,
	}
}

// Size returns the current pool size.
func (p *RandomPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.nodes)
}

// Remove drops n from the pool, e.g. after it crosses the failure
// threshold.
func (p *RandomPool) Remove(n types.ServiceNode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, n.Key())
	metrics.RandomPoolSize.Set(float64(len(p.nodes)))
}

// Sample returns a cryptographically random node from the pool,
// bootstrapping from a seed first if the pool is empty.
func (p *RandomPool) Sample(ctx context.Context) (types.ServiceNode, error) {
	if p.Size() == 0 {
		if err := p.bootstrap(ctx); err != nil {
			return types.ServiceNode{}, err
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.nodes) == 0 {
		return types.ServiceNode{}, errGeneric("random pool empty after bootstrap")
	}

	all := make([]types.ServiceNode, 0, len(p.nodes))
	for _, n := range p.nodes {
		all = append(all, n)
	}
	idx, err := cryptoRandIndex(len(all))
	if err != nil {
		return types.ServiceNode{}, err
	}
	return all[idx], nil
}

// bootstrap picks a uniformly random seed and fetches the active service
// node list from it, populating the pool.
func (p *RandomPool) bootstrap(ctx context.Context) error {
	seedIdx, err := cryptoRandIndex(len(p.seeds))
	if err != nil {
		return err
	}
	seed := p.seeds[seedIdx]

	res, err := p.http.Execute(ctx, httpclient.Request{
		Verb: httpclient.Post,
		URL:  seed + "/json_rpc",
		Params: map[string]any{
			"method": "get_n_service_nodes",
			"params": map[string]any{
				"active_only": true,
				"limit":       seedNServiceNodesLimit,
				"fields": map[string]any{
					"public_ip":    true,
					"storage_port": true,
				},
			},
		},
		UseSeedConnection: true,
	})
	if err != nil {
		return fmt.Errorf("bootstrap from seed %s: %w", seed, err)
	}

	nodes, err := parseServiceNodeStates(res)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return errGeneric("seed returned no active service nodes")
	}

	p.mu.Lock()
	for _, n := range nodes {
		p.nodes[n.Key()] = n
	}
	size := len(p.nodes)
	p.mu.Unlock()

	metrics.RandomPoolSize.Set(float64(size))
	log.WithComponent("swarm").Info().Str("seed", seed).Int("count", len(nodes)).Msg("bootstrapped random pool")
	return nil
}

// parseServiceNodeStates extracts result.service_node_states[*] from a
// seed bootstrap response, filtering the "0.0.0.0" placeholder address.
func parseServiceNodeStates(res httpclient.Result) ([]types.ServiceNode, error) {
	result, ok := res["result"].(map[string]any)
	if !ok {
		return nil, errParsingFailed("seed bootstrap response missing result object")
	}
	states, ok := result["service_node_states"].([]any)
	if !ok {
		return nil, errParsingFailed("seed bootstrap response missing service_node_states array")
	}

	nodes := make([]types.ServiceNode, 0, len(states))
	for _, raw := range states {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ip, _ := entry["public_ip"].(string)
		if ip == "" || ip == "0.0.0.0" {
			continue
		}
		port, err := numericPort(entry["storage_port"])
		if err != nil {
			continue
		}
		nodes = append(nodes, types.ServiceNode{Address: "https://" + ip, Port: port})
	}
	return nodes, nil
}

// cryptoRandIndex returns a uniformly random index in [0, n) using a
// cryptographic RNG, required for all swarm shuffling and sampling.
func cryptoRandIndex(n int) (int, error) {
	if n <= 0 {
		return 0, errGeneric("cannot sample from an empty set")
	}
	max := big.NewInt(int64(n))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, fmt.Errorf("crypto rand: %w", err)
	}
	return int(v.Int64()), nil
}

// shuffle performs a cryptographically random Fisher-Yates permutation of
// a copy of nodes.
func shuffle(nodes []types.ServiceNode) ([]types.ServiceNode, error) {
	out := make([]types.ServiceNode, len(nodes))
	copy(out, nodes)
	for i := len(out) - 1; i > 0; i-- {
		j, err := cryptoRandIndex(i + 1)
		if err != nil {
			return nil, err
		}
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
