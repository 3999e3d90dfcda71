package migrations

import "embed"

// FS holds the versioned schema applied by cmd/migrate.
//
//go:embed *.sql
var FS embed.FS
