// Package storage defines the host-provided persistence contract
//. The swarm-RPC substrate and open-group client never touch
// a database directly — they depend on these interfaces, which a host
// application backs with whatever it already uses for local state. Two
// implementations ship here: memstore for tests and embedding without a
// disk dependency, and boltstore for a real single-file database.
package storage

import (
	"github.com/oxen-io/session-network-core/pkg/types"
)

// SwarmCacheStore persists each public key's swarm.
type SwarmCacheStore interface {
	GetSwarmCache(pubKey string) ([]types.ServiceNode, error)
	SetSwarmCache(pubKey string, nodes []types.ServiceNode) error
}

// AuthTokenStore persists open-group bearer tokens keyed by server URL.
type AuthTokenStore interface {
	GetAuthToken(server string) (token string, ok bool, err error)
	SetAuthToken(server, token string) error
	ClearAuthToken(server string) error
}

// LastMessageHashStore persists the polling cursor used by GetMessages.
type LastMessageHashStore interface {
	GetLastMessageHash(target types.ServiceNode) (hash string, ok bool, err error)
	SetLastMessageHash(target types.ServiceNode, hash string) error
}

// ReceivedHashStore deduplicates inbound messages. Growth is unbounded by spec; implementations may
// prune as long as property 3 still holds.
type ReceivedHashStore interface {
	HasReceivedHash(hash string) (bool, error)
	AddReceivedHash(hash string) error
}

// OpenGroupCursorStore persists the per-(channel,server) polling cursors
// for messages and deletions.
type OpenGroupCursorStore interface {
	GetLastMessageServerID(channel int64, server string) (int64, error)
	SetLastMessageServerID(channel int64, server string, id int64) error
	GetLastDeletionServerID(channel int64, server string) (int64, error)
	SetLastDeletionServerID(channel int64, server string, id int64) error
}

// OpenGroupMiscStore persists the remaining per-channel state the REST
// client updates as a side effect of polling.
type OpenGroupMiscStore interface {
	SetUserCount(channel int64, server string, n int) error
	GetOpenGroupAvatarURL(channel int64, server string) (string, error)
	SetOpenGroupAvatarURL(channel int64, server string, url string) error
}

// Store is the full persistence contract a host application implements.
// All methods are assumed blocking and safe for concurrent use.
type Store interface {
	SwarmCacheStore
	AuthTokenStore
	LastMessageHashStore
	ReceivedHashStore
	OpenGroupCursorStore
	OpenGroupMiscStore

	Close() error
}
