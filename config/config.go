package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Reminder   ReminderConfig   `mapstructure:"reminder"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Seed       SeedConfig       `mapstructure:"seed"`
	Access     AccessConfig     `mapstructure:"access"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the host:port the server binds to.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ReminderConfig controls the pending-approval reminder scan.
type ReminderConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`  // cron expression
	StaleAge time.Duration `mapstructure:"stale_age"` // how long pending before a nudge
}

// DispatcherConfig sizes the async event pipeline.
type DispatcherConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// SeedConfig controls first-run provisioning. When Office is set and the
// leave type catalogue is empty, the preset types are created for it.
type SeedConfig struct {
	Office string `mapstructure:"office"`
}

// AccessConfig names the actors granted admin capabilities. Empty means
// nobody can perform manual balance mutations, which is the safe default.
type AccessConfig struct {
	Admins []string `mapstructure:"admins"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	setDefaults()
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("default config does not unmarshal: %v", err))
	}
	return &cfg
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/leave.db")

	viper.SetDefault("reminder.enabled", true)
	viper.SetDefault("reminder.schedule", "0 9 * * *") // daily at 09:00
	viper.SetDefault("reminder.stale_age", 48*time.Hour)

	viper.SetDefault("dispatcher.buffer_size", 256)

	viper.SetDefault("seed.office", "")
	viper.SetDefault("access.admins", []string{})

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Reminder.Enabled && c.Reminder.Schedule == "" {
		return fmt.Errorf("reminder.schedule is required when reminders are enabled")
	}
	if c.Dispatcher.BufferSize <= 0 {
		return fmt.Errorf("dispatcher.buffer_size must be positive")
	}
	return nil
}
