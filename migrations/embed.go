// Package migrations embeds the inventory schema into the binary.
//
// Pass FS to database.DB.Migrate.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files at its root.
//
//go:embed *.sql
var FS embed.FS
