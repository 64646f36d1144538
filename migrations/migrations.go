package migrations

import "embed"

// Migration files are bundled at compile time so a single binary can
// bootstrap either backend without external file dependencies.
//
//go:embed sqlite/*.sql
var Sqlite embed.FS

//go:embed postgres/*.sql
var Postgres embed.FS
