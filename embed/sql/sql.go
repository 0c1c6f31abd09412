package sql

import _ "embed"

// Schema is the DDL applied on every startup. All statements are
// idempotent so Init can run unconditionally.
//
//go:embed schema.sql
var Schema string
