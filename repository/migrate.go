package repository

import (
	"context"
	"database/sql"

	"github.com/goliatone/flaresync/repository/migrations"
	"github.com/pressly/goose/v3"
)

// Migrate applies the embedded SQL migrations to db.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}
