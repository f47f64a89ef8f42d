// Package migrations embeds the versioned schema files applied by mysql.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
