// SPDX-License-Identifier: MPL-2.0

package history

// migration is one forward-only schema step.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations are applied in order; never edit a released entry.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create_executions",
		SQL: `
CREATE TABLE executions (
	id          TEXT PRIMARY KEY,
	input       TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	args        TEXT NOT NULL DEFAULT '[]',
	outcome     TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_executions_started_at ON executions(started_at);
`,
	},
	{
		Version: 2,
		Name:    "index_executions_name",
		SQL:     `CREATE INDEX idx_executions_name ON executions(name);`,
	},
}
