package migrations

import "embed"

// FS contains the embedded Postgres migrations for the user directory.
//
//go:embed *.sql
var FS embed.FS
