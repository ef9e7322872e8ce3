package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/console.db")

	// Module defaults
	v.SetDefault("modules.fleet.enabled", true)
	v.SetDefault("modules.fleet.heartbeat_timeout", "90s")
	v.SetDefault("modules.fleet.lost_check_interval", "60s")
	v.SetDefault("modules.fleet.ping_timeout", "2s")
	v.SetDefault("modules.fleet.ping_count", 3)
	v.SetDefault("modules.groups.enabled", true)
	v.SetDefault("modules.groups.settle_delay", "1s")
	v.SetDefault("modules.directory.enabled", true)
	v.SetDefault("modules.commands.enabled", true)
	v.SetDefault("modules.settings.enabled", true)
	v.SetDefault("modules.notify.enabled", true)
	v.SetDefault("modules.notify.broker_url", "")
	v.SetDefault("modules.notify.topic_prefix", "console")
	v.SetDefault("modules.notify.qos", 1)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("console")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/radiorevive")
	}

	// Environment variable support: RRC_SERVER_PORT=9090
	v.SetEnvPrefix("RRC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
