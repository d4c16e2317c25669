// Package migrations embeds the contacts.db schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
