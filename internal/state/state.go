// Package state persists recovery sessions in a bbolt database so an
// in-progress reset survives a restart.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/FahadAltaf/PropPulse/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory.
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	// Records hold provider tokens.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var recoverySessionsBucket = []byte("recovery_sessions")

// HashKey returns the SHA-256 hex digest of a session id. Used as the
// storage key so raw cookie values are not stored on disk.
func HashKey(id string) string {
	h := sha256.Sum256([]byte(id))
	return hex.EncodeToString(h[:])
}

// State wraps a bbolt database.
type State struct {
	db *bolt.DB
}

// LoadAt opens a state database at the given path, creating it and its
// parent directory if they do not exist.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recoverySessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// PutRecoverySession stores rs under key (see HashKey).
func (s *State) PutRecoverySession(key string, rs *models.RecoverySession) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("encoding recovery session: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recoverySessionsBucket).Put([]byte(key), data)
	})
}

// RecoverySession returns the session stored under key, or nil.
func (s *State) RecoverySession(key string) (*models.RecoverySession, error) {
	var rs *models.RecoverySession

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recoverySessionsBucket).Get([]byte(key))
		if v == nil {
			return nil
		}

		rs = &models.RecoverySession{}

		return json.Unmarshal(v, rs)
	})
	if err != nil {
		return nil, fmt.Errorf("reading recovery session: %w", err)
	}

	return rs, nil
}

// DeleteRecoverySession removes the session stored under key. Deleting a
// missing key is not an error.
func (s *State) DeleteRecoverySession(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recoverySessionsBucket).Delete([]byte(key))
	})
}

// RecoverySessions returns every stored session that has not expired,
// keyed by storage key. Expired and undecodable records are deleted.
func (s *State) RecoverySessions(now time.Time) (map[string]*models.RecoverySession, error) {
	out := make(map[string]*models.RecoverySession)

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recoverySessionsBucket)

		var stale [][]byte

		err := b.ForEach(func(k, v []byte) error {
			var rs models.RecoverySession
			if err := json.Unmarshal(v, &rs); err != nil || now.After(rs.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
				return nil
			}

			out[string(k)] = &rs

			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading recovery sessions: %w", err)
	}

	return out, nil
}
