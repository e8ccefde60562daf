package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
)

// PendingStore persists pending OAuth transactions in badger. Entries carry
// a badger TTL so abandoned redirects expire on their own.
type PendingStore struct {
	db  *badger.DB
	ttl time.Duration
	now func() time.Time
}

var _ social.PendingStore = (*PendingStore)(nil)

// NewPendingStore wraps db. ttl applies to transactions without ExpiresAt.
func NewPendingStore(db *badger.DB, ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = social.DefaultPendingTTL
	}
	return &PendingStore{db: db, ttl: ttl, now: time.Now}
}

// Put implements social.PendingStore.
func (s *PendingStore) Put(ctx context.Context, tx *social.PendingTransaction) error {
	if tx == nil || tx.UserID == "" || tx.Platform == "" {
		return social.ErrInvalidState
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cp := *tx
	now := s.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = now.Add(s.ttl)
	}

	ttl := cp.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return social.ErrStateExpired
	}

	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("marshal pending transaction: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(social.PendingKey(cp.UserID, cp.Platform)), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Take implements social.PendingStore. The read and delete happen in one
// transaction so a transaction can only be consumed once.
func (s *PendingStore) Take(ctx context.Context, userID string, platform flaresync.Platform) (*social.PendingTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(social.PendingKey(userID, platform))
	var out social.PendingTransaction

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return social.ErrPendingNotFound
		}
		if err != nil {
			return fmt.Errorf("get pending transaction: %w", err)
		}

		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		}); err != nil {
			return fmt.Errorf("decode pending transaction: %w", err)
		}

		return txn.Delete(key)
	})
	if err != nil {
		return nil, err
	}

	if out.Expired(s.now()) {
		return nil, social.ErrPendingNotFound
	}
	return &out, nil
}

// Delete implements social.PendingStore.
func (s *PendingStore) Delete(_ context.Context, userID string, platform flaresync.Platform) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(social.PendingKey(userID, platform)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
