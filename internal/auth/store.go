// Package auth serves the password recovery pages. It keeps recovery
// sessions and CSRF tokens in memory, optionally writing sessions through
// to persistent storage so a reset in progress survives a restart.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/FahadAltaf/PropPulse/internal/errors"
	"github.com/FahadAltaf/PropPulse/internal/models"
	"github.com/FahadAltaf/PropPulse/internal/state"
)

const (
	// csrfExpiry controls how long a CSRF token remains valid.
	csrfExpiry = 10 * time.Minute

	// cleanupInterval controls how often expired entries are reaped.
	cleanupInterval = 5 * time.Minute

	// sessionIDBytes is the number of random bytes in a recovery
	// session cookie (hex-encoded to twice this length).
	sessionIDBytes = 32

	// csrfTokenBytes is the number of random bytes in a CSRF token.
	csrfTokenBytes = 16
)

// Persister stores recovery sessions outside the process. Keys are
// state.HashKey digests of the session id.
type Persister interface {
	PutRecoverySession(key string, rs *models.RecoverySession) error
	DeleteRecoverySession(key string) error
	RecoverySessions(now time.Time) (map[string]*models.RecoverySession, error)
}

// csrfEntry tracks a CSRF token with its expiry and the session it was
// issued to.
type csrfEntry struct {
	sessionKey string
	expiresAt  time.Time
}

// Store holds recovery sessions and CSRF tokens.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.RecoverySession // hashed id -> session
	csrf     map[string]csrfEntry               // csrf token -> entry
	persist  Persister
	logger   *slog.Logger
	stopGC   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewStore creates a store, loads any live sessions from persist (which
// may be nil) and starts a background goroutine that periodically
// removes expired entries. Call Stop() to clean up the goroutine.
func NewStore(persist Persister, logger *slog.Logger) *Store {
	s := &Store{
		sessions: make(map[string]*models.RecoverySession),
		csrf:     make(map[string]csrfEntry),
		persist:  persist,
		logger:   logger,
		stopGC:   make(chan struct{}),
		now:      time.Now,
	}

	if persist != nil {
		loaded, err := persist.RecoverySessions(s.now())
		if err != nil {
			logger.Warn("loading persisted recovery sessions", slog.String("error", err.Error()))
		} else {
			s.sessions = loaded
			if len(loaded) > 0 {
				logger.Info("restored recovery sessions", slog.Int("count", len(loaded)))
			}
		}
	}

	go s.gcLoop()

	return s
}

// Stop terminates the background cleanup goroutine. Safe to call twice.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopGC) })
}

// gcLoop periodically removes expired sessions and CSRF tokens.
func (s *Store) gcLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopGC:
			return
		}
	}
}

// cleanup removes all expired entries from the store.
func (s *Store) cleanup() {
	now := s.now()

	var expired []string

	s.mu.Lock()

	for k, rs := range s.sessions {
		if now.After(rs.ExpiresAt) {
			delete(s.sessions, k)
			expired = append(expired, k)
		}
	}

	for k, entry := range s.csrf {
		if now.After(entry.expiresAt) {
			delete(s.csrf, k)
		}
	}

	s.mu.Unlock()

	for _, k := range expired {
		s.unpersist(k)
	}
}

// CreateSession starts a recovery session for a provider session. The
// session lives for ttl, or until the provider token expires if sooner.
func (s *Store) CreateSession(session *models.Session, ttl time.Duration) *models.RecoverySession {
	now := s.now()

	expiresAt := now.Add(ttl)
	if !session.ExpiresAt.IsZero() && session.ExpiresAt.Before(expiresAt) {
		expiresAt = session.ExpiresAt
	}

	rs := &models.RecoverySession{
		ID:        RandomHex(sessionIDBytes),
		Session:   *session,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}

	key := state.HashKey(rs.ID)

	s.mu.Lock()
	s.sessions[key] = rs
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.PutRecoverySession(key, rs); err != nil {
			s.logger.Warn("persisting recovery session", slog.String("error", err.Error()))
		}
	}

	return rs
}

// Lookup returns the live recovery session for a cookie value. It fails
// with ErrSessionNotFound for unknown ids and ErrSessionExpired for
// sessions past their expiry that the GC has not reaped yet.
func (s *Store) Lookup(id string) (*models.RecoverySession, error) {
	if id == "" {
		return nil, apperrors.ErrSessionNotFound
	}

	s.mu.RLock()
	rs, ok := s.sessions[state.HashKey(id)]
	s.mu.RUnlock()

	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}

	if s.now().After(rs.ExpiresAt) {
		return nil, apperrors.ErrSessionExpired
	}

	return rs, nil
}

// Session is Lookup without the reason: nil for unknown or expired ids.
func (s *Store) Session(id string) *models.RecoverySession {
	rs, err := s.Lookup(id)
	if err != nil {
		return nil
	}

	return rs
}

// DeleteSession ends a recovery session.
func (s *Store) DeleteSession(id string) {
	key := state.HashKey(id)

	s.mu.Lock()
	delete(s.sessions, key)

	for token, entry := range s.csrf {
		if entry.sessionKey == key {
			delete(s.csrf, token)
		}
	}
	s.mu.Unlock()

	s.unpersist(key)
}

func (s *Store) unpersist(key string) {
	if s.persist == nil {
		return
	}

	if err := s.persist.DeleteRecoverySession(key); err != nil {
		s.logger.Warn("deleting persisted recovery session", slog.String("error", err.Error()))
	}
}

// NewCSRF issues a CSRF token bound to a recovery session.
func (s *Store) NewCSRF(sessionID string) string {
	token := RandomHex(csrfTokenBytes)

	s.mu.Lock()
	s.csrf[token] = csrfEntry{
		sessionKey: state.HashKey(sessionID),
		expiresAt:  s.now().Add(csrfExpiry),
	}
	s.mu.Unlock()

	return token
}

// ConsumeCSRF retrieves and deletes a CSRF token. Returns false if the
// token is empty, unknown, expired or was issued to another session.
func (s *Store) ConsumeCSRF(token, sessionID string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.csrf[token]
	if !ok {
		return false
	}

	delete(s.csrf, token)

	return entry.sessionKey == state.HashKey(sessionID) && s.now().Before(entry.expiresAt)
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}
