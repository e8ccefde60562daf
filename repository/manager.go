package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/flaresync"
	"github.com/uptrace/bun"
)

// EncryptedRecordsTable is the generic table backing the record store.
const EncryptedRecordsTable = "encrypted_records"

// Manager groups the repositories sharing one database handle.
type Manager struct {
	db       *bun.DB
	profiles *SocialProfileRepository
	records  *RecordStore
}

// NewManager creates a repository manager over db.
func NewManager(db *bun.DB) *Manager {
	return &Manager{
		db:       db,
		profiles: NewSocialProfileRepository(db),
		records:  NewRecordStore(db, EncryptedRecordsTable),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.records == nil {
		return errors.New("repository records should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// RunInTx runs f in a transaction. The repositories handed to f are bound
// to the transaction.
func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, profiles flaresync.ProfileRepository) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
			return f(ctx, NewSocialProfileRepository(tx))
		})
	}
}

// Profiles returns the social profile repository.
func (m *Manager) Profiles() flaresync.ProfileRepository {
	return m.profiles
}

// Records returns the generic encrypted record store.
func (m *Manager) Records() *RecordStore {
	return m.records
}
