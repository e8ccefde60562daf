// Package migrations embeds the goose SQL migrations for flaresync.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
