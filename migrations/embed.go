// Package migrations holds the goose SQL migrations for the ladder database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
