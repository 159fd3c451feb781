package migrations

import "embed"

// FS holds the ordered SQL migrations applied by db.Migrate.
//
//go:embed *.sql
var FS embed.FS
