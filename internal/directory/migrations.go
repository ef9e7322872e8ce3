package directory

import (
	"database/sql"

	"github.com/radiorevive/console/pkg/plugin"
)

// migrations returns the directory module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create user directory tables",
			Up: func(tx *sql.Tx) error {
				// Two locations with the same shape. The legacy table
				// predates the storage migration and stays readable until
				// every record has moved; new records only ever land in
				// the current table.
				stmts := []string{
					`CREATE TABLE directory_users (
						id         TEXT PRIMARY KEY,
						name       TEXT NOT NULL DEFAULT '',
						email      TEXT NOT NULL,
						role       TEXT NOT NULL DEFAULT 'user',
						device_id  TEXT NOT NULL DEFAULT '',
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX idx_directory_users_email ON directory_users(email)`,
					`CREATE TABLE directory_users_legacy (
						id         TEXT PRIMARY KEY,
						name       TEXT NOT NULL DEFAULT '',
						email      TEXT NOT NULL,
						role       TEXT NOT NULL DEFAULT 'user',
						device_id  TEXT NOT NULL DEFAULT '',
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX idx_directory_users_legacy_email ON directory_users_legacy(email)`,
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
