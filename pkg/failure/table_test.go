package failure

import (
	"testing"

	"github.com/oxen-io/session-network-core/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestIncrementAndThreshold(t *testing.T) {
	tbl := New()
	n := types.ServiceNode{Address: "https://1.2.3.4", Port: 22021}

	assert.Equal(t, 1, tbl.Increment(n))
	assert.False(t, tbl.ThresholdReached(n))

	assert.Equal(t, 2, tbl.Increment(n))
	assert.True(t, tbl.ThresholdReached(n))
}

func TestResetClearsCounter(t *testing.T) {
	tbl := New()
	n := types.ServiceNode{Address: "https://1.2.3.4", Port: 22021}
	tbl.Increment(n)
	tbl.Increment(n)
	tbl.Reset(n)
	assert.Equal(t, 0, tbl.Count(n))
	assert.False(t, tbl.ThresholdReached(n))
}

func TestCountsAreIndependentPerNode(t *testing.T) {
	tbl := New()
	a := types.ServiceNode{Address: "https://1.1.1.1", Port: 1}
	b := types.ServiceNode{Address: "https://2.2.2.2", Port: 2}
	tbl.Increment(a)
	assert.Equal(t, 1, tbl.Count(a))
	assert.Equal(t, 0, tbl.Count(b))
}
