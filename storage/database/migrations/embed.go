// Package migrations holds the goose SQL migrations of the allocation database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
