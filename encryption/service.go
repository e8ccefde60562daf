// Package encryption protects sensitive record fields before they leave the
// trust boundary. Each sensitive field is stored as a <field>_encrypted /
// <field>_iv pair; the plaintext column is never written.
//
// Failures never panic. Operations report "did not complete securely" with a
// nil/false result, log the cause and raise a warning through the Reporter so
// the host application can keep running in degraded mode.
package encryption

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/cryptox"
	"github.com/goliatone/go-errors"
)

// EncryptedField is a ciphertext and its initialization vector, both base64.
type EncryptedField struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

// Reporter surfaces non fatal encryption warnings to the user.
type Reporter interface {
	Warning(message string)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(message string)

// Warning implements Reporter.
func (f ReporterFunc) Warning(message string) {
	if f != nil {
		f(message)
	}
}

type noopReporter struct{}

func (noopReporter) Warning(string) {}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l flaresync.Logger) Option {
	return func(s *Service) {
		s.logger = flaresync.NormalizeLogger(l)
	}
}

// WithReporter sets the warning reporter.
func WithReporter(r Reporter) Option {
	return func(s *Service) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithRecordStore sets the persistence backend for record operations.
func WithRecordStore(store RecordStore) Option {
	return func(s *Service) {
		s.records = store
	}
}

// Service manages key material and field level encryption.
type Service struct {
	mu       sync.RWMutex
	keys     KeyStore
	records  RecordStore
	logger   flaresync.Logger
	reporter Reporter

	masterKey []byte
	keyPair   *cryptox.KeyPair
}

// NewService creates a Service over keys. Call Initialize before use.
func NewService(keys KeyStore, opts ...Option) *Service {
	s := &Service{
		keys:     keys,
		logger:   flaresync.DefaultLogger(),
		reporter: noopReporter{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Initialize loads key material, generating and persisting it on first use.
// It is idempotent. A false result means the service runs in degraded mode.
func (s *Service) Initialize(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.masterKey != nil {
		return true
	}

	if s.keys == nil {
		s.warn("encryption key store not configured", nil)
		return false
	}

	material, err := s.keys.Load(ctx)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		material, err = s.generate(ctx)
		if err != nil {
			s.warn("failed to create encryption keys", err)
			return false
		}
	case err != nil:
		s.warn("failed to load encryption keys", err)
		return false
	}

	masterKey, err := cryptox.ImportKey(material.MasterKey)
	if err != nil {
		s.warn("stored encryption key is invalid", err)
		return false
	}

	var kp *cryptox.KeyPair
	if material.PublicKey == "" || material.PrivateKey == "" {
		kp, err = cryptox.GenerateKeyPair()
		if err == nil {
			material.PublicKey, material.PrivateKey = cryptox.ExportKeyPair(kp)
			err = s.keys.Save(ctx, material)
		}
	} else {
		kp, err = cryptox.ImportKeyPair(material.PublicKey, material.PrivateKey)
	}
	if err != nil {
		// The master key alone is enough for field encryption.
		s.logger.Warn("encryption keypair unavailable", "error", err)
		kp = nil
	}

	s.masterKey = masterKey
	s.keyPair = kp
	s.logger.Debug("encryption service initialized", "keypair", kp != nil)
	return true
}

// Ready reports whether Initialize completed.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.masterKey != nil
}

// PublicKey returns the encoded end-to-end public key, if one is loaded.
func (s *Service) PublicKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.keyPair == nil {
		return ""
	}
	pub, _ := cryptox.ExportKeyPair(s.keyPair)
	return pub
}

// EncryptField encrypts plaintext. It returns nil when the service is not
// initialized or encryption fails. The empty string encrypts to a valid,
// non-empty ciphertext.
func (s *Service) EncryptField(plaintext string) *EncryptedField {
	key := s.key()
	if key == nil {
		s.warn("encryption requested before initialization", nil)
		return nil
	}

	ciphertext, iv, err := cryptox.Seal(key, []byte(plaintext))
	if err != nil {
		s.warn("failed to encrypt field", err)
		return nil
	}

	return &EncryptedField{
		Ciphertext: cryptox.EncodeBytes(ciphertext),
		IV:         cryptox.EncodeBytes(iv),
	}
}

// DecryptField reverses EncryptField.
func (s *Service) DecryptField(field *EncryptedField) (string, bool) {
	if field == nil || field.Ciphertext == "" || field.IV == "" {
		return "", false
	}

	key := s.key()
	if key == nil {
		s.warn("decryption requested before initialization", nil)
		return "", false
	}

	ciphertext, err := cryptox.DecodeBytes(field.Ciphertext)
	if err != nil {
		s.warn("failed to decode ciphertext", err)
		return "", false
	}
	iv, err := cryptox.DecodeBytes(field.IV)
	if err != nil {
		s.warn("failed to decode iv", err)
		return "", false
	}

	plaintext, err := cryptox.Open(key, ciphertext, iv)
	if err != nil {
		s.warn("failed to decrypt field", err)
		return "", false
	}
	return string(plaintext), true
}

func (s *Service) key() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.masterKey
}

func (s *Service) generate(ctx context.Context) (*KeyMaterial, error) {
	key, err := cryptox.GenerateKey()
	if err != nil {
		return nil, err
	}
	kp, err := cryptox.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	material := &KeyMaterial{
		MasterKey: cryptox.ExportKey(key),
		CreatedAt: time.Now().UTC(),
	}
	material.PublicKey, material.PrivateKey = cryptox.ExportKeyPair(kp)

	if err := s.keys.Save(ctx, material); err != nil {
		return nil, err
	}
	s.logger.Info("generated new encryption key material")
	return material, nil
}

func (s *Service) warn(msg string, err error) {
	if err != nil {
		s.logger.Warn(msg, "error", err)
	} else {
		s.logger.Warn(msg)
	}
	s.reporter.Warning(msg)
}
