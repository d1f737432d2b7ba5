// Package migrations embeds the SQL migration source for the postgres
// event store backend, served to golang-migrate's iofs source driver the
// way the teacher's postgres metadata store embeds its own migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
