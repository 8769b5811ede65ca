// Package db embeds the SQL migrations applied at startup when
// DB_AUTO_MIGRATE is enabled.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
