// Package schema embeds the decision history migrations, one directory per driver.
package schema

import "embed"

// FS holds sqlite/*.sql and postgres/*.sql in golang-migrate's NNN_name.up.sql / .down.sql layout.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
