// Package migrations embeds the versioned postgres schema applied when
// database.migrate is sql.
package migrations

import "embed"

// FS holds the golang-migrate files at its root.
//
//go:embed *.sql
var FS embed.FS
