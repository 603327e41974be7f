package repository

// Schema for the build-cache record store.
// Compatible with both SQLite and PostgreSQL.

const schemaCacheRecords = `
CREATE TABLE IF NOT EXISTS cache_records (
    scenario TEXT NOT NULL,
    leak_config TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    generated_at TIMESTAMP NOT NULL,
    run_id TEXT NOT NULL,
    PRIMARY KEY (scenario, leak_config)
);

CREATE INDEX IF NOT EXISTS idx_cache_records_scenario ON cache_records(scenario);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCacheRecords,
	}
}
