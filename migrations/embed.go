package migrations

import "embed"

// Files exposes embedded SQL schema files ordered lexicographically.
//
//go:embed sqlite/*.sql
var Files embed.FS
