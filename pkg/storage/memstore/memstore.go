// Package memstore is an in-memory reference implementation of
// pkg/storage.Store, used in tests and anywhere persistence across
// process restarts isn't required.
package memstore

import (
	"sync"

	"github.com/oxen-io/session-network-core/pkg/types"
)

type ogKey struct {
	channel int64
	server  string
}

// Store is a mutex-guarded, map-backed pkg/storage.Store.
type Store struct {
	mu sync.RWMutex

	swarms       map[string][]types.ServiceNode
	authTokens   map[string]string
	lastHashes   map[string]string
	receivedSet  map[string]struct{}
	lastMsgIDs   map[ogKey]int64
	lastDelIDs   map[ogKey]int64
	userCounts   map[ogKey]int
	avatarURLs   map[ogKey]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		swarms:      make(map[string][]types.ServiceNode),
		authTokens:  make(map[string]string),
		lastHashes:  make(map[string]string),
		receivedSet: make(map[string]struct{}),
		lastMsgIDs:  make(map[ogKey]int64),
		lastDelIDs:  make(map[ogKey]int64),
		userCounts:  make(map[ogKey]int),
		avatarURLs:  make(map[ogKey]string),
	}
}

func (s *Store) GetSwarmCache(pubKey string) ([]types.ServiceNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := s.swarms[pubKey]
	out := make([]types.ServiceNode, len(nodes))
	copy(out, nodes)
	return out, nil
}

func (s *Store) SetSwarmCache(pubKey string, nodes []types.ServiceNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]types.ServiceNode, len(nodes))
	copy(cp, nodes)
	s.swarms[pubKey] = cp
	return nil
}

func (s *Store) GetAuthToken(server string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.authTokens[server]
	return tok, ok, nil
}

func (s *Store) SetAuthToken(server, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authTokens[server] = token
	return nil
}

func (s *Store) ClearAuthToken(server string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.authTokens, server)
	return nil
}

func (s *Store) GetLastMessageHash(target types.ServiceNode) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.lastHashes[target.Key()]
	return h, ok, nil
}

func (s *Store) SetLastMessageHash(target types.ServiceNode, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHashes[target.Key()] = hash
	return nil
}

func (s *Store) HasReceivedHash(hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.receivedSet[hash]
	return ok, nil
}

func (s *Store) AddReceivedHash(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivedSet[hash] = struct{}{}
	return nil
}

func (s *Store) GetLastMessageServerID(channel int64, server string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMsgIDs[ogKey{channel, server}], nil
}

func (s *Store) SetLastMessageServerID(channel int64, server string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMsgIDs[ogKey{channel, server}] = id
	return nil
}

func (s *Store) GetLastDeletionServerID(channel int64, server string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDelIDs[ogKey{channel, server}], nil
}

func (s *Store) SetLastDeletionServerID(channel int64, server string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDelIDs[ogKey{channel, server}] = id
	return nil
}

func (s *Store) SetUserCount(channel int64, server string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userCounts[ogKey{channel, server}] = n
	return nil
}

func (s *Store) GetOpenGroupAvatarURL(channel int64, server string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.avatarURLs[ogKey{channel, server}], nil
}

func (s *Store) SetOpenGroupAvatarURL(channel int64, server string, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatarURLs[ogKey{channel, server}] = url
	return nil
}

func (s *Store) Close() error { return nil }
