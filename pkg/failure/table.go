// Package failure implements the process-wide FailureTable: a ServiceNode
// → failure count map, reset to zero the moment a node is evicted. The
// table itself doesn't know about swarms or the random pool — callers
// (pkg/storagerpc) decide what eviction means once the threshold is
// crossed.
package failure

import (
	"sync"

	"github.com/oxen-io/session-network-core/pkg/types"
)

// Table counts consecutive failures per ServiceNode.
type Table struct {
	mu     sync.Mutex
	counts map[string]int
}

// New returns an empty failure table.
func New() *Table {
	return &Table{counts: make(map[string]int)}
}

// Increment records one more failure against n and returns the new count.
func (t *Table) Increment(n types.ServiceNode) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[n.Key()]++
	return t.counts[n.Key()]
}

// Reset zeroes n's counter, e.g. immediately after eviction.
func (t *Table) Reset(n types.ServiceNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, n.Key())
}

// Count returns n's current failure count.
func (t *Table) Count(n types.ServiceNode) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[n.Key()]
}

// ThresholdReached reports whether n has reached types.FailureThreshold.
func (t *Table) ThresholdReached(n types.ServiceNode) bool {
	return t.Count(n) >= types.FailureThreshold
}
