package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"teukbyeolsil/internal/slots"
)

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
	} `yaml:"app"`

	HTTP HTTPConfig `yaml:"http"`

	Database struct {
		Path   string       `yaml:"path"`
		Backup BackupConfig `yaml:"backup"`
	} `yaml:"database"`

	Redis RedisConfig `yaml:"redis"`

	Booking BookingConfig `yaml:"booking"`

	Archive struct {
		RetentionDays int    `yaml:"retention_days"`
		ExportDir     string `yaml:"export_dir"`
	} `yaml:"archive"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"logging"`

	// Accounts maps user ids to the staff role they receive on registration.
	Accounts struct {
		Staff map[string]string `yaml:"staff"`
	} `yaml:"accounts"`

	RoomsFile string `yaml:"rooms_file"`
}

type HTTPConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdentityHeader string        `yaml:"identity_header"`
	RequestsPerSec float64       `yaml:"requests_per_second"`
	Burst          int           `yaml:"burst"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	StoragePath   string        `yaml:"storage_path"`
	RetentionDays int           `yaml:"retention_days"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type BookingConfig struct {
	Open                 string `yaml:"open"`
	Close                string `yaml:"close"`
	SlotMinutes          int    `yaml:"slot_minutes"`
	RecurrenceWeeks      []int  `yaml:"recurrence_weeks"`
	PurposeMinLength     int    `yaml:"purpose_min_length"`
	PurposeMaxLength     int    `yaml:"purpose_max_length"`
	SubmissionsPerMinute int    `yaml:"submissions_per_minute"`
}

// Window parses the operating window.
func (b BookingConfig) Window() (slots.Window, error) {
	return slots.NewWindow(b.Open, b.Close, b.SlotMinutes)
}

// Load reads .env (if present) and the YAML config at path.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "teukbyeolsil"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdentityHeader == "" {
		c.HTTP.IdentityHeader = "X-User-ID"
	}
	if c.HTTP.RequestsPerSec <= 0 {
		c.HTTP.RequestsPerSec = 20
	}
	if c.HTTP.Burst <= 0 {
		c.HTTP.Burst = 40
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/teukbyeolsil.db"
	}
	if c.Database.Backup.Interval <= 0 {
		c.Database.Backup.Interval = 24 * time.Hour
	}
	if c.Database.Backup.StoragePath == "" {
		c.Database.Backup.StoragePath = "data/backups"
	}
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = 5 * time.Minute
	}
	if c.Booking.Open == "" {
		c.Booking.Open = "08:00"
	}
	if c.Booking.Close == "" {
		c.Booking.Close = "22:00"
	}
	if c.Booking.SlotMinutes <= 0 {
		c.Booking.SlotMinutes = 30
	}
	if len(c.Booking.RecurrenceWeeks) == 0 {
		c.Booking.RecurrenceWeeks = []int{2, 4, 6, 8, 12}
	}
	if c.Booking.PurposeMinLength <= 0 {
		c.Booking.PurposeMinLength = 5
	}
	if c.Booking.PurposeMaxLength <= 0 {
		c.Booking.PurposeMaxLength = 500
	}
	if c.Booking.SubmissionsPerMinute <= 0 {
		c.Booking.SubmissionsPerMinute = 10
	}
	if c.Archive.RetentionDays <= 0 {
		c.Archive.RetentionDays = 14
	}
	if c.Archive.ExportDir == "" {
		c.Archive.ExportDir = "data/exports"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8081
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks values defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Booking.Window(); err != nil {
		return fmt.Errorf("booking window: %w", err)
	}
	if c.Booking.PurposeMinLength > c.Booking.PurposeMaxLength {
		return fmt.Errorf("booking: purpose_min_length %d exceeds purpose_max_length %d",
			c.Booking.PurposeMinLength, c.Booking.PurposeMaxLength)
	}
	for _, w := range c.Booking.RecurrenceWeeks {
		if w < 1 {
			return fmt.Errorf("booking: recurrence week count must be positive, got %d", w)
		}
	}
	for id, role := range c.Accounts.Staff {
		if role != "teacher" && role != "admin" {
			return fmt.Errorf("accounts: staff %q has role %q, want teacher or admin", id, role)
		}
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis: address is required when enabled")
	}
	return nil
}

// ArchiveRetention is the archive age threshold.
func (c *Config) ArchiveRetention() time.Duration {
	return time.Duration(c.Archive.RetentionDays) * 24 * time.Hour
}
