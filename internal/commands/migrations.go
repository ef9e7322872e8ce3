package commands

import (
	"database/sql"

	"github.com/radiorevive/console/pkg/plugin"
)

// migrations returns the commands module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create command queue table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					// One global queue for all devices. Entries are
					// append-only from the console side; the agent owns
					// the processed transition.
					`CREATE TABLE command_queue (
						id         TEXT PRIMARY KEY,
						device_id  TEXT NOT NULL,
						action     TEXT NOT NULL,
						stream_url TEXT NOT NULL DEFAULT '',
						volume     INTEGER,
						ssid       TEXT NOT NULL DEFAULT '',
						password   TEXT NOT NULL DEFAULT '',
						ip_address TEXT NOT NULL DEFAULT '',
						gateway    TEXT NOT NULL DEFAULT '',
						dns1       TEXT NOT NULL DEFAULT '',
						dns2       TEXT NOT NULL DEFAULT '',
						iface      TEXT NOT NULL DEFAULT '',
						processed  INTEGER NOT NULL DEFAULT 0,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX idx_command_queue_device ON command_queue(device_id, processed)`,
					`CREATE INDEX idx_command_queue_created ON command_queue(created_at)`,
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
