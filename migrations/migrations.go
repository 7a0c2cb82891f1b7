// Package migrations embeds the SQL migrations of the session database.
package migrations

import "embed"

// FS holds every NNN_name.sql migration.
//
//go:embed *.sql
var FS embed.FS
