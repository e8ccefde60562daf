package social

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/flaresync"
)

// DefaultPendingTTL bounds how long a redirect round-trip may take.
const DefaultPendingTTL = 10 * time.Minute

// PendingTransaction is the client side record of an OAuth redirect that has
// not returned yet. It is single use.
type PendingTransaction struct {
	UserID       string             `json:"user_id"`
	Platform     flaresync.Platform `json:"platform"`
	Nonce        string             `json:"nonce"`
	CodeVerifier string             `json:"code_verifier,omitempty"`
	RedirectURI  string             `json:"redirect_uri,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	ExpiresAt    time.Time          `json:"expires_at"`
}

// Expired reports whether the transaction is past its deadline at now.
func (t *PendingTransaction) Expired(now time.Time) bool {
	if t == nil {
		return true
	}
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// PendingStore holds pending transactions keyed by (user, platform).
type PendingStore interface {
	// Put stores tx, replacing any pending transaction for the same key.
	Put(ctx context.Context, tx *PendingTransaction) error
	// Take returns and removes the transaction. Missing or expired entries
	// return ErrPendingNotFound.
	Take(ctx context.Context, userID string, platform flaresync.Platform) (*PendingTransaction, error)
	// Delete drops the transaction if present.
	Delete(ctx context.Context, userID string, platform flaresync.Platform) error
}

// PendingKey is the storage key for a (user, platform) pair.
func PendingKey(userID string, platform flaresync.Platform) string {
	return "oauth_pending:" + platform.String() + ":" + userID
}

// MemoryPendingStore is a process local PendingStore.
type MemoryPendingStore struct {
	mu      sync.Mutex
	entries map[string]*PendingTransaction
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryPendingStore creates a store; ttl applies to entries without an
// explicit ExpiresAt.
func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &MemoryPendingStore{
		entries: map[string]*PendingTransaction{},
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put implements PendingStore.
func (s *MemoryPendingStore) Put(_ context.Context, tx *PendingTransaction) error {
	if tx == nil || tx.UserID == "" || tx.Platform == "" {
		return ErrInvalidState
	}

	cp := *tx
	now := s.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = now.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(now)
	s.entries[PendingKey(cp.UserID, cp.Platform)] = &cp
	return nil
}

// Take implements PendingStore.
func (s *MemoryPendingStore) Take(_ context.Context, userID string, platform flaresync.Platform) (*PendingTransaction, error) {
	key := PendingKey(userID, platform)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.entries[key]
	delete(s.entries, key)
	if !ok || tx.Expired(s.now()) {
		return nil, ErrPendingNotFound
	}
	return tx, nil
}

// Delete implements PendingStore.
func (s *MemoryPendingStore) Delete(_ context.Context, userID string, platform flaresync.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, PendingKey(userID, platform))
	return nil
}

// Len returns the number of live entries.
func (s *MemoryPendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.now())
	return len(s.entries)
}

func (s *MemoryPendingStore) sweep(now time.Time) {
	for k, tx := range s.entries {
		if tx.Expired(now) {
			delete(s.entries, k)
		}
	}
}
