// Package db provides embedded database migrations.
package db

import "embed"

// Migrations holds the goose SQL migrations, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
