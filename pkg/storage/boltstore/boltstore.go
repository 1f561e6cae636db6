// Package boltstore is a durable pkg/storage.Store backed by a single
// go.etcd.io/bbolt file, adapted from the cluster-state store this repo
// was built from. It is a reference implementation for host applications
// that want disk-backed swarm caches and auth tokens without standing up
// their own database.
package boltstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/oxen-io/session-network-core/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketSwarms      = []byte("swarms")
	bucketAuthTokens  = []byte("auth_tokens")
	bucketLastHashes  = []byte("last_message_hashes")
	bucketReceived    = []byte("received_hashes")
	bucketMsgCursors  = []byte("open_group_message_cursors")
	bucketDelCursors  = []byte("open_group_deletion_cursors")
	bucketUserCounts  = []byte("open_group_user_counts")
	bucketAvatarURLs  = []byte("open_group_avatar_urls")
)

// Store is a bbolt-backed implementation of pkg/storage.Store.
type Store struct {
	db *bolt.DB
}

// Open creates (if needed) and opens the database file under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "session-network.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	buckets := [][]byte{
		bucketSwarms, bucketAuthTokens, bucketLastHashes, bucketReceived,
		bucketMsgCursors, bucketDelCursors, bucketUserCounts, bucketAvatarURLs,
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetSwarmCache(pubKey string) ([]types.ServiceNode, error) {
	var nodes []types.ServiceNode
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSwarms).Get([]byte(pubKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &nodes)
	})
	return nodes, err
}

func (s *Store) SetSwarmCache(pubKey string, nodes []types.ServiceNode) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(nodes)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSwarms).Put([]byte(pubKey), data)
	})
}

func (s *Store) GetAuthToken(server string) (string, bool, error) {
	var tok string
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAuthTokens).Get([]byte(server))
		if data == nil {
			return nil
		}
		ok = true
		tok = string(data)
		return nil
	})
	return tok, ok, err
}

func (s *Store) SetAuthToken(server, token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAuthTokens).Put([]byte(server), []byte(token))
	})
}

func (s *Store) ClearAuthToken(server string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAuthTokens).Delete([]byte(server))
	})
}

func (s *Store) GetLastMessageHash(target types.ServiceNode) (string, bool, error) {
	var hash string
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketLastHashes).Get([]byte(target.Key()))
		if data == nil {
			return nil
		}
		ok = true
		hash = string(data)
		return nil
	})
	return hash, ok, err
}

func (s *Store) SetLastMessageHash(target types.ServiceNode, hash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLastHashes).Put([]byte(target.Key()), []byte(hash))
	})
}

func (s *Store) HasReceivedHash(hash string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(bucketReceived).Get([]byte(hash)) != nil
		return nil
	})
	return ok, err
}

func (s *Store) AddReceivedHash(hash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReceived).Put([]byte(hash), []byte{1})
	})
}

func ogCursorKey(channel int64, server string) []byte {
	key := make([]byte, 8+len(server))
	binary.BigEndian.PutUint64(key[:8], uint64(channel))
	copy(key[8:], server)
	return key
}

func (s *Store) GetLastMessageServerID(channel int64, server string) (int64, error) {
	return s.getInt64(bucketMsgCursors, ogCursorKey(channel, server))
}

func (s *Store) SetLastMessageServerID(channel int64, server string, id int64) error {
	return s.putInt64(bucketMsgCursors, ogCursorKey(channel, server), id)
}

func (s *Store) GetLastDeletionServerID(channel int64, server string) (int64, error) {
	return s.getInt64(bucketDelCursors, ogCursorKey(channel, server))
}

func (s *Store) SetLastDeletionServerID(channel int64, server string, id int64) error {
	return s.putInt64(bucketDelCursors, ogCursorKey(channel, server), id)
}

func (s *Store) SetUserCount(channel int64, server string, n int) error {
	return s.putInt64(bucketUserCounts, ogCursorKey(channel, server), int64(n))
}

func (s *Store) GetOpenGroupAvatarURL(channel int64, server string) (string, error) {
	var url string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAvatarURLs).Get(ogCursorKey(channel, server))
		url = string(data)
		return nil
	})
	return url, err
}

func (s *Store) SetOpenGroupAvatarURL(channel int64, server string, url string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAvatarURLs).Put(ogCursorKey(channel, server), []byte(url))
	})
}

func (s *Store) getInt64(bucket, key []byte) (int64, error) {
	var v int64
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get(key)
		if len(data) != 8 {
			return nil
		}
		v = int64(binary.BigEndian.Uint64(data))
		return nil
	})
	return v, err
}

func (s *Store) putInt64(bucket, key []byte, v int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data := make([]byte, 8)
		binary.BigEndian.PutUint64(data, uint64(v))
		return tx.Bucket(bucket).Put(key, data)
	})
}
