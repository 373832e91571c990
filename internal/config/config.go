// Package config reads chorewheel settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/dukerupert/chorewheel/internal/backup"
)

// Duration parses "30s", "5m" or a bare number of seconds.
type Duration time.Duration

func (d *Duration) SetValue(data string) error {
	s := strings.Trim(strings.TrimSpace(data), `"'`)
	if s == "" {
		return fmt.Errorf("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must be like 30s, 5m or a number of seconds: %w", err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

type Config struct {
	App    AppConfig
	HTTP   HTTPConfig
	DB     DBConfig
	Sync   SyncConfig
	Backup BackupConfig

	loc *time.Location
}

type AppConfig struct {
	LogLevel  string `env:"CHOREWHEEL_LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"CHOREWHEEL_LOG_FORMAT" env-default:"text"`
	// Timezone decides what "today" is. Weeks themselves are UTC dates.
	Timezone       string `env:"CHOREWHEEL_TIMEZONE" env-default:"UTC"`
	PreferencePath string `env:"CHOREWHEEL_PREFERENCES" env-default:""`
}

type HTTPConfig struct {
	Port string `env:"CHOREWHEEL_PORT" env-default:"8080"`
}

type DBConfig struct {
	Path string `env:"CHOREWHEEL_DB_PATH" env-default:"chorewheel.db"`
}

type SyncConfig struct {
	// ServerURL, when set, makes the CLI talk to a server instead of the
	// local database.
	ServerURL    string   `env:"CHOREWHEEL_SERVER_URL" env-default:""`
	PollInterval Duration `env:"CHOREWHEEL_POLL_INTERVAL" env-default:"30s"`
}

type BackupConfig struct {
	Endpoint      string `env:"CHOREWHEEL_S3_ENDPOINT" env-default:""`
	Bucket        string `env:"CHOREWHEEL_S3_BUCKET" env-default:""`
	Region        string `env:"CHOREWHEEL_S3_REGION" env-default:"us-east-1"`
	AccessKey     string `env:"CHOREWHEEL_S3_ACCESS_KEY" env-default:""`
	SecretKey     string `env:"CHOREWHEEL_S3_SECRET_KEY" env-default:""`
	Prefix        string `env:"CHOREWHEEL_S3_PREFIX" env-default:"chorewheel"`
	Passphrase    string `env:"CHOREWHEEL_BACKUP_PASSPHRASE" env-default:""`
	Hour          int    `env:"CHOREWHEEL_BACKUP_HOUR" env-default:"3"`
	RetentionDays int    `env:"CHOREWHEEL_BACKUP_RETENTION_DAYS" env-default:"30"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return fmt.Errorf("CHOREWHEEL_TIMEZONE: %w", err)
	}
	c.loc = loc

	switch strings.ToLower(c.App.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("CHOREWHEEL_LOG_FORMAT must be text or json, got %q", c.App.LogFormat)
	}
	if c.Sync.PollInterval.Duration() <= 0 {
		return fmt.Errorf("CHOREWHEEL_POLL_INTERVAL must be positive")
	}
	if c.Backup.Hour < 0 || c.Backup.Hour > 23 {
		return fmt.Errorf("CHOREWHEEL_BACKUP_HOUR must be 0-23, got %d", c.Backup.Hour)
	}
	if c.Sync.ServerURL != "" &&
		!strings.HasPrefix(c.Sync.ServerURL, "http://") && !strings.HasPrefix(c.Sync.ServerURL, "https://") {
		return fmt.Errorf("CHOREWHEEL_SERVER_URL must start with http:// or https://")
	}
	return nil
}

// Location is the reference timezone for the current date.
func (c Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// BackupManagerConfig converts the backup settings for backup.NewManager.
func (c Config) BackupManagerConfig() backup.Config {
	return backup.Config{
		S3: backup.S3Config{
			Endpoint:  c.Backup.Endpoint,
			Bucket:    c.Backup.Bucket,
			Region:    c.Backup.Region,
			AccessKey: c.Backup.AccessKey,
			SecretKey: c.Backup.SecretKey,
			Prefix:    c.Backup.Prefix,
		},
		Passphrase:    c.Backup.Passphrase,
		ScheduleHour:  c.Backup.Hour,
		RetentionDays: c.Backup.RetentionDays,
	}
}
