// Package migrations embeds the SQL schema migrations so the binary can
// migrate its own database without shipping loose files.
package migrations

import "embed"

// FS holds the embedded goose migration files.
//
//go:embed *.sql
var FS embed.FS
