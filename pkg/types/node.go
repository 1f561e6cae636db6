package types

import "fmt"

// ServiceNode identifies a storage RPC endpoint by address and port. Two
// ServiceNodes are equal iff both fields match; Key is the canonical form
// used for map lookups and set membership.
type ServiceNode struct {
	// Address is an opaque URI including scheme, e.g. "https://144.76.164.202".
	Address string
	Port    int
}

// Key returns the canonical identity of a ServiceNode for use as a map key.
func (n ServiceNode) Key() string {
	return fmt.Sprintf("%s:%d", n.Address, n.Port)
}

func (n ServiceNode) String() string {
	return fmt.Sprintf("%s:%d", n.Address, n.Port)
}

// URL returns the base URL for RPC calls against this node.
func (n ServiceNode) URL() string {
	return fmt.Sprintf("%s:%d", n.Address, n.Port)
}

// MinimumSnodeCount is the minimum acceptable swarm size before a refresh
// is triggered.
const MinimumSnodeCount = 2

// TargetSnodeCount is the number of swarm members a broadcast send targets.
const TargetSnodeCount = 3

// FailureThreshold is the consecutive-failure count at which a ServiceNode
// is evicted from both a key's swarm cache and the RandomPool.
const FailureThreshold = 2

// MaxRetryCount bounds the application-level retry wrapper around any
// single RPC call.
const MaxRetryCount = 8

// InitialDifficulty is the DifficultyState's process-wide starting value.
const InitialDifficulty = 40
