package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Scans table - one row per delivered code
		`CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			symbology TEXT NOT NULL,
			payload TEXT NOT NULL,
			camera TEXT NOT NULL DEFAULT 'back',
			frame_seq INTEGER NOT NULL DEFAULT 0,
			scanned_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Bindings table - plugin actions to run for a symbology ('' matches any)
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			symbology TEXT NOT NULL DEFAULT '',
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scans(scanned_at)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_symbology ON scans(symbology)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_symbology ON bindings(symbology)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
