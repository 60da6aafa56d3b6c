// Package migrations embeds the Postgres schema for the event outbox.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
