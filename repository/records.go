package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/goliatone/flaresync/encryption"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrRecordNotFound is returned when FindOne matches no row.
var ErrRecordNotFound = errors.New("record not found")

// RecordStore is a map based encryption.RecordStore over bun. Table and
// column names are checked against a plain identifier pattern before they
// reach SQL.
type RecordStore struct {
	db     bun.IDB
	tables map[string]struct{}
}

var _ encryption.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates a record store limited to the given tables. With
// no tables every well formed table name is accepted.
func NewRecordStore(db bun.IDB, tables ...string) *RecordStore {
	allowed := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		allowed[t] = struct{}{}
	}
	return &RecordStore{db: db, tables: allowed}
}

// Insert implements encryption.RecordStore. An id is generated when the
// record has none.
func (s *RecordStore) Insert(ctx context.Context, table string, record map[string]any) (string, error) {
	if err := s.checkTable(table); err != nil {
		return "", err
	}
	if err := checkColumns(record); err != nil {
		return "", err
	}

	row := make(map[string]any, len(record)+1)
	for k, v := range record {
		row[k] = v
	}

	id, _ := row["id"].(string)
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}

	_, err := s.db.NewInsert().
		Model(&row).
		TableExpr("?", bun.Ident(table)).
		Exec(ctx)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FindOne implements encryption.RecordStore.
func (s *RecordStore) FindOne(ctx context.Context, table string, match map[string]any) (map[string]any, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	if len(match) == 0 {
		return nil, errors.New("record match is required")
	}
	if err := checkColumns(match); err != nil {
		return nil, err
	}

	q := s.db.NewSelect().
		TableExpr("?", bun.Ident(table)).
		ColumnExpr("*").
		Limit(1)
	q = applyMatch(q, match)

	row := map[string]any{}
	if err := q.Scan(ctx, &row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if len(row) == 0 {
		return nil, ErrRecordNotFound
	}

	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return row, nil
}

// Update implements encryption.RecordStore.
func (s *RecordStore) Update(ctx context.Context, table string, match, values map[string]any) error {
	if err := s.checkTable(table); err != nil {
		return err
	}
	if len(match) == 0 {
		return errors.New("record match is required")
	}
	if len(values) == 0 {
		return nil
	}
	if err := checkColumns(match); err != nil {
		return err
	}
	if err := checkColumns(values); err != nil {
		return err
	}

	q := s.db.NewUpdate().
		Model(&values).
		TableExpr("?", bun.Ident(table))
	for _, key := range sortedKeys(match) {
		q = q.Where("? = ?", bun.Ident(key), match[key])
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *RecordStore) checkTable(table string) error {
	if !identPattern.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if len(s.tables) == 0 {
		return nil
	}
	if _, ok := s.tables[table]; !ok {
		return fmt.Errorf("table %q is not allowed", table)
	}
	return nil
}

func checkColumns(values map[string]any) error {
	for k := range values {
		if !identPattern.MatchString(k) {
			return fmt.Errorf("invalid column name %q", k)
		}
	}
	return nil
}

func applyMatch(q *bun.SelectQuery, match map[string]any) *bun.SelectQuery {
	for _, key := range sortedKeys(match) {
		q = q.Where("? = ?", bun.Ident(key), match[key])
	}
	return q
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
