package schema

import _ "embed"

// SnapshotTask is the JSON Schema that every task record in a snapshot
// file must satisfy before it is imported.
//
//go:embed snapshot_task.schema.json
var SnapshotTask string
