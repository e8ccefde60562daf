package encryption

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

const (
	encryptedSuffix = "_encrypted"
	ivSuffix        = "_iv"
)

// RecordStore persists generic rows for the record level operations.
type RecordStore interface {
	Insert(ctx context.Context, table string, record map[string]any) (string, error)
	FindOne(ctx context.Context, table string, match map[string]any) (map[string]any, error)
	Update(ctx context.Context, table string, match, values map[string]any) error
}

// EncryptedColumn returns the ciphertext column name for field.
func EncryptedColumn(field string) string {
	return field + encryptedSuffix
}

// IVColumn returns the IV column name for field.
func IVColumn(field string) string {
	return field + ivSuffix
}

// StoreEncryptedRecord encrypts the named fields of record and inserts it
// into table. Plaintext values of those fields are never written.
func (s *Service) StoreEncryptedRecord(ctx context.Context, table string, record map[string]any, fields []string) (string, bool) {
	if s.records == nil {
		s.warn("encrypted record store not configured", nil)
		return "", false
	}

	row, ok := s.sealFields(record, fields)
	if !ok {
		return "", false
	}

	id, err := s.records.Insert(ctx, table, row)
	if err != nil {
		s.warn("failed to store encrypted record", err)
		return "", false
	}
	return id, true
}

// RetrieveAndDecryptRecord loads a row and decrypts the named fields. A
// decrypted value that parses as JSON is returned structured, otherwise as
// a raw string.
func (s *Service) RetrieveAndDecryptRecord(ctx context.Context, table string, match map[string]any, fields []string) (map[string]any, bool) {
	if s.records == nil {
		s.warn("encrypted record store not configured", nil)
		return nil, false
	}

	row, err := s.records.FindOne(ctx, table, match)
	if err != nil {
		s.logger.Error("failed to load encrypted record", "table", table, "error", err)
		return nil, false
	}

	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}

	for _, field := range fields {
		ciphertext, _ := stringValue(out[EncryptedColumn(field)])
		iv, _ := stringValue(out[IVColumn(field)])
		delete(out, EncryptedColumn(field))
		delete(out, IVColumn(field))

		if ciphertext == "" || iv == "" {
			continue
		}

		plaintext, ok := s.DecryptField(&EncryptedField{Ciphertext: ciphertext, IV: iv})
		if !ok {
			return nil, false
		}

		var parsed any
		if err := json.Unmarshal([]byte(plaintext), &parsed); err == nil {
			out[field] = parsed
		} else {
			out[field] = plaintext
		}
	}

	return out, true
}

// UpdateEncryptedRecord applies a partial update, encrypting the named
// fields present in values.
func (s *Service) UpdateEncryptedRecord(ctx context.Context, table string, match, values map[string]any, fields []string) bool {
	if s.records == nil {
		s.warn("encrypted record store not configured", nil)
		return false
	}

	row, ok := s.sealFields(values, fields)
	if !ok {
		return false
	}

	if err := s.records.Update(ctx, table, match, row); err != nil {
		s.warn("failed to update encrypted record", err)
		return false
	}
	return true
}

func (s *Service) sealFields(record map[string]any, fields []string) (map[string]any, bool) {
	row := make(map[string]any, len(record)+len(fields))
	for k, v := range record {
		row[k] = v
	}

	for _, field := range fields {
		value, present := row[field]
		delete(row, field)
		if !present {
			continue
		}

		plaintext, err := plaintextValue(value)
		if err != nil {
			s.warn(fmt.Sprintf("failed to serialize field %s", field), err)
			return nil, false
		}
		if plaintext == "" {
			continue
		}

		sealed := s.EncryptField(plaintext)
		if sealed == nil {
			return nil, false
		}
		row[EncryptedColumn(field)] = sealed.Ciphertext
		row[IVColumn(field)] = sealed.IV
	}

	return row, true
}

func plaintextValue(v any) (string, error) {
	if s, ok := stringValue(v); ok {
		return s, nil
	}
	if v == nil {
		return "", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case *string:
		if t == nil {
			return "", true
		}
		return *t, true
	}
	return "", false
}
