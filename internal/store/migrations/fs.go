// Package migrations embeds the SQL migration files applied to bridge.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
