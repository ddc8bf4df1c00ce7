package database

// migrations is an ordered list of SQL migration groups. Each entry is a slice
// of SQL statements that are executed together in a single transaction. The
// version number is the 1-based index into this slice.
var migrations = [][]string{
	// Migration 1: leads table
	{
		`CREATE TABLE leads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL COLLATE NOCASE,
			company TEXT NOT NULL,
			engaged BOOLEAN NOT NULL DEFAULT FALSE,
			current_stage TEXT NOT NULL,
			stage_updated_at TEXT NOT NULL,
			stage_history TEXT NOT NULL DEFAULT '[]',
			last_contacted TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE UNIQUE INDEX idx_leads_email ON leads(email)`,

		`CREATE INDEX idx_leads_created_at ON leads(created_at)`,
	},
}
