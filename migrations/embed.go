// Package migrations carries the goose SQL schema for the cash-up database.
// The server applies it at startup when RUN_MIGRATIONS is set, and the
// integration tests apply it through testutil.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
