// Package db embeds the SQL schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for every table and index the service owns.
//
//go:embed migrations/001_schema.sql
var Schema string
