// Package difficulty holds the process-wide proof-of-work difficulty
//. The network may replace the value at
// any time; monotonicity is not required.
package difficulty

import "sync/atomic"

// State is a process-wide, concurrency-safe difficulty value. The zero
// value is not ready to use; construct with New.
type State struct {
	value atomic.Int64
}

// New returns a State seeded at initial (callers pass
// types.InitialDifficulty).
func New(initial int) *State {
	s := &State{}
	s.value.Store(int64(initial))
	return s
}

// Get returns the current difficulty.
func (s *State) Get() int {
	return int(s.value.Load())
}

// Set replaces the current difficulty with d, regardless of whether d is
// higher or lower than the previous value.
func (s *State) Set(d int) {
	s.value.Store(int64(d))
}
