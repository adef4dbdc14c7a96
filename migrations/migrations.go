// Package migrations embeds the server's PostgreSQL schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
