package auth

import (
	"sync"
	"time"
)

// TokenRevocationStore keeps revoked tokens in memory until they would have
// expired anyway. Two kinds of entry exist: a single token (by JTI, on logout)
// and a per-user cutoff (on deactivation) that rejects every token issued to
// that user before the cutoff.
type TokenRevocationStore struct {
	mu       sync.RWMutex
	tokens   map[string]time.Time // JTI -> expiry
	users    map[string]userCutoff
	interval time.Duration
	done     chan struct{}
	now      func() time.Time
}

type userCutoff struct {
	before time.Time
	until  time.Time
}

// NewTokenRevocationStore creates a store and starts a background goroutine
// that drops expired entries every interval.
func NewTokenRevocationStore(interval time.Duration) *TokenRevocationStore {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s := &TokenRevocationStore{
		tokens:   make(map[string]time.Time),
		users:    make(map[string]userCutoff),
		interval: interval,
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go s.cleanupLoop()
	return s
}

// Revoke rejects the token with the given JTI until expiresAt.
func (s *TokenRevocationStore) Revoke(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[jti] = expiresAt
}

// RevokeUser rejects every token issued to userID up to now. ttl is the
// longest lifetime a token can have; the cutoff is forgotten after that.
func (s *TokenRevocationStore) RevokeUser(userID string, ttl time.Duration) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = userCutoff{before: now, until: now.Add(ttl)}
}

// IsRevoked reports whether claims belong to a revoked token.
func (s *TokenRevocationStore) IsRevoked(claims *Claims) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tokens[claims.ID]; ok && claims.ID != "" {
		return true
	}
	cut, ok := s.users[claims.Subject]
	if !ok {
		return false
	}
	if claims.IssuedAt == nil {
		return true
	}
	return !claims.IssuedAt.Time.After(cut.before)
}

// Count returns the number of tracked entries.
func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens) + len(s.users)
}

// Close stops the background cleanup goroutine. It is safe to call
// multiple times.
func (s *TokenRevocationStore) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *TokenRevocationStore) cleanupLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *TokenRevocationStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, exp := range s.tokens {
		if now.After(exp) {
			delete(s.tokens, jti)
		}
	}
	for uid, cut := range s.users {
		if now.After(cut.until) {
			delete(s.users, uid)
		}
	}
}
