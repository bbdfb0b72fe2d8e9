// Package migrations embeds the SQL schema applied at server start.
package migrations

import "embed"

// FS holds goose migration files.
//
//go:embed *.sql
var FS embed.FS
