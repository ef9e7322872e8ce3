package fleet

import (
	"database/sql"

	"github.com/radiorevive/console/pkg/plugin"
)

// migrations returns the fleet module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create fleet_devices table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					// group_id and legacy_group are nullable on purpose:
					// an absent assignment is NULL, never ''. last_seen is
					// nullable because only the device agent writes it.
					`CREATE TABLE fleet_devices (
						id                 TEXT PRIMARY KEY,
						device_id          TEXT NOT NULL DEFAULT '',
						name               TEXT NOT NULL DEFAULT '',
						status             TEXT NOT NULL DEFAULT '',
						ip_address         TEXT NOT NULL DEFAULT '',
						wifi_connected     INTEGER NOT NULL DEFAULT 0,
						ethernet_connected INTEGER NOT NULL DEFAULT 0,
						group_id           TEXT,
						legacy_group       TEXT,
						stream_url         TEXT NOT NULL DEFAULT '',
						current_url        TEXT NOT NULL DEFAULT '',
						volume             INTEGER NOT NULL DEFAULT 50,
						cpu_usage          REAL NOT NULL DEFAULT 0,
						memory_usage       REAL NOT NULL DEFAULT 0,
						disk_usage         REAL NOT NULL DEFAULT 0,
						uptime_sec         INTEGER NOT NULL DEFAULT 0,
						firmware_version   TEXT NOT NULL DEFAULT '',
						last_seen          DATETIME,
						created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX idx_fleet_devices_device_id ON fleet_devices(device_id)`,
					`CREATE INDEX idx_fleet_devices_ip ON fleet_devices(ip_address)`,
					`CREATE INDEX idx_fleet_devices_group ON fleet_devices(group_id)`,
					`CREATE INDEX idx_fleet_devices_last_seen ON fleet_devices(last_seen)`,
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
