package groups

import (
	"database/sql"

	"github.com/radiorevive/console/pkg/plugin"
)

// migrations returns the groups module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create streaming groups table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE stream_groups (
						id           TEXT PRIMARY KEY,
						name         TEXT NOT NULL,
						stream_url   TEXT NOT NULL DEFAULT '',
						music_files  TEXT NOT NULL DEFAULT '[]',
						device_count INTEGER NOT NULL DEFAULT 0,
						created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX idx_stream_groups_name ON stream_groups(name)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
