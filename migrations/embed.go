// Package migrations embeds the SQL schema migrations into the binary.
//
// Importing this package (for side effects) wires the embedded files into the
// database package's migration runner:
//
//	import _ "github.com/idea-vending/vendsync/migrations"
package migrations

import (
	"embed"

	"github.com/idea-vending/vendsync/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
