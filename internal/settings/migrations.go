package settings

import (
	"database/sql"

	"github.com/radiorevive/console/pkg/plugin"
)

// migrations returns the settings module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create settings table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE console_settings (
					key        TEXT PRIMARY KEY,
					value      TEXT NOT NULL,
					updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`)
				return err
			},
		},
	}
}
