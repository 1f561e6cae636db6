package sendpath

import (
	"sync"

	"github.com/oxen-io/session-network-core/pkg/types"
)

// PeerTable tracks known direct-connect peers and their last-observed
// online/offline state. It is process-wide and concurrently mutated,
// like the other shared services a sender depends on.
type PeerTable struct {
	mu    sync.RWMutex
	peers map[string]types.Peer
}

// NewPeerTable returns an empty PeerTable.
func NewPeerTable() *PeerTable {
	return &PeerTable{peers: make(map[string]types.Peer)}
}

// Get returns the known peer for pubKey, if any.
func (t *PeerTable) Get(pubKey string) (types.Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[pubKey]
	return p, ok
}

// Set records or replaces a peer entry, e.g. after learning its address
// from a session establishment flow out of scope for this module.
func (t *PeerTable) Set(p types.Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[p.PublicKey] = p
}

// MarkOnline flags pubKey's peer entry online after a successful direct
// send. It is a no-op if the peer is unknown.
func (t *PeerTable) MarkOnline(pubKey string) {
	t.setOnline(pubKey, true)
}

// MarkOffline flags pubKey's peer entry offline after a failed direct
// send, so the next attempt falls through to the swarm path immediately
// unless the message is a ping.
func (t *PeerTable) MarkOffline(pubKey string) {
	t.setOnline(pubKey, false)
}

func (t *PeerTable) setOnline(pubKey string, online bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[pubKey]
	if !ok {
		return
	}
	p.Online = online
	t.peers[pubKey] = p
}
