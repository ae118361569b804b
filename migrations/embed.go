// Package migrations holds the schema as golang-migrate files, embedded into the binaries.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
