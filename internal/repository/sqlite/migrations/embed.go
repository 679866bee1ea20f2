package migrations

import "embed"

// FS contains the embedded SQLite migrations for the user directory.
//
//go:embed *.sql
var FS embed.FS
