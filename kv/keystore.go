package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/goliatone/flaresync/encryption"
)

const keyMaterialKey = "encryption:key_material"

// KeyStore persists encryption key material in badger.
type KeyStore struct {
	db *badger.DB
}

var _ encryption.KeyStore = (*KeyStore)(nil)

// NewKeyStore wraps db.
func NewKeyStore(db *badger.DB) *KeyStore {
	return &KeyStore{db: db}
}

// Load implements encryption.KeyStore.
func (s *KeyStore) Load(ctx context.Context) (*encryption.KeyMaterial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var material encryption.KeyMaterial
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyMaterialKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return encryption.ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get key material: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &material)
		})
	})
	if err != nil {
		return nil, err
	}
	return &material, nil
}

// Save implements encryption.KeyStore.
func (s *KeyStore) Save(ctx context.Context, material *encryption.KeyMaterial) error {
	if material == nil {
		return errors.New("key material must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(material)
	if err != nil {
		return fmt.Errorf("marshal key material: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyMaterialKey), data)
	})
}
