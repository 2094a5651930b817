package db

import "embed"

// Migrations holds the schema in golang-migrate's up/down file layout.
//
//go:embed migrations/*.sql
var Migrations embed.FS
