package encryption

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/goliatone/go-errors"
)

const TextCodeKeyNotFound = "encryption_key_not_found"

// ErrKeyNotFound is returned by a KeyStore that holds no key material yet.
var ErrKeyNotFound = errors.New("encryption key material not found", errors.CategoryNotFound).
	WithTextCode(TextCodeKeyNotFound).
	WithCode(errors.CodeNotFound)

// KeyMaterial is the long lived secret set for one installation.
type KeyMaterial struct {
	MasterKey  string    `json:"master_key"`
	PublicKey  string    `json:"public_key,omitempty"`
	PrivateKey string    `json:"private_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// KeyStore persists KeyMaterial.
type KeyStore interface {
	Load(ctx context.Context) (*KeyMaterial, error)
	Save(ctx context.Context, material *KeyMaterial) error
}

// MemoryKeyStore keeps key material for the lifetime of the process.
type MemoryKeyStore struct {
	mu       sync.RWMutex
	material *KeyMaterial
}

// NewMemoryKeyStore returns an empty in-memory store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{}
}

// Load implements KeyStore.
func (s *MemoryKeyStore) Load(context.Context) (*KeyMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.material == nil {
		return nil, ErrKeyNotFound
	}
	cp := *s.material
	return &cp, nil
}

// Save implements KeyStore.
func (s *MemoryKeyStore) Save(_ context.Context, material *KeyMaterial) error {
	if material == nil {
		return errors.New("key material must not be nil", errors.CategoryValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *material
	s.material = &cp
	return nil
}

// FileKeyStore keeps key material in a JSON file readable only by the owner.
type FileKeyStore struct {
	path string
	mu   sync.Mutex
}

// NewFileKeyStore stores key material at path.
func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

// Load implements KeyStore.
func (s *FileKeyStore) Load(context.Context) (*KeyMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var material KeyMaterial
	if err := json.Unmarshal(raw, &material); err != nil {
		return nil, fmt.Errorf("failed to decode key file: %w", err)
	}
	return &material, nil
}

// Save implements KeyStore. The file is replaced atomically.
func (s *FileKeyStore) Save(_ context.Context, material *KeyMaterial) error {
	if material == nil {
		return errors.New("key material must not be nil", errors.CategoryValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(material)
	if err != nil {
		return fmt.Errorf("failed to encode key material: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace key file: %w", err)
	}
	return nil
}
