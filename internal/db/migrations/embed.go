// Package migrations embeds the SQL schema for tenantseal.
package migrations

import "embed"

// FS contains the embedded goose migration files.
//
//go:embed *.sql
var FS embed.FS
