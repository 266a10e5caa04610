package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"studyspace/pkg/models"
)

type Database struct {
	Driver     string `mapstructure:"db_driver"`
	Host       string `mapstructure:"db_host"`
	Port       string `mapstructure:"db_port"`
	User       string `mapstructure:"db_user"`
	Password   string `mapstructure:"db_password"`
	Name       string `mapstructure:"db_name"`
	SQLitePath string `mapstructure:"sqlite_path"`
	MaxRetries int    `mapstructure:"db_max_retries"`
}

type Config struct {
	Env      string `mapstructure:"app_env"`
	HTTPAddr string `mapstructure:"http_addr"`

	Database Database `mapstructure:",squash"`

	RedisAddr     string        `mapstructure:"redis_addr"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	RabbitURL     string        `mapstructure:"rabbit_url"`
	AuditExchange string        `mapstructure:"audit_exchange"`
	AuditQueue    string        `mapstructure:"audit_queue"`

	ReservationConflictStatuses string        `mapstructure:"reservation_conflict_statuses"`
	ExpirySweepInterval         time.Duration `mapstructure:"expiry_sweep_interval"`
	MetricsEnabled              bool          `mapstructure:"metrics_enabled"`
	SeedDemoData                bool          `mapstructure:"seed_demo_data"`
}

// Load reads defaults, an optional config file and the process environment, in
// increasing order of precedence. Keys map to upper-case environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "prod")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_host", "postgres")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "program")
	v.SetDefault("db_password", "test")
	v.SetDefault("db_name", "studyspace")
	v.SetDefault("sqlite_path", "studyspace.db")
	v.SetDefault("db_max_retries", 10)
	v.SetDefault("redis_addr", "")
	v.SetDefault("lock_ttl", 10*time.Second)
	v.SetDefault("rabbit_url", "")
	v.SetDefault("audit_exchange", "audit")
	v.SetDefault("audit_queue", "auditor.records")
	v.SetDefault("reservation_conflict_statuses", "active")
	v.SetDefault("expiry_sweep_interval", time.Hour)
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("seed_demo_data", false)
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if _, err := c.ReassignStatuses(); err != nil {
		return err
	}
	if c.ExpirySweepInterval < 0 {
		return fmt.Errorf("EXPIRY_SWEEP_INTERVAL must not be negative")
	}
	return nil
}

// DSN formats the postgres connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

// ReassignStatuses parses the statuses that block a resource during reassignment.
func (c Config) ReassignStatuses() ([]models.SubscriptionStatus, error) {
	var out []models.SubscriptionStatus
	for _, part := range strings.Split(c.ReservationConflictStatuses, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		status := models.SubscriptionStatus(part)
		if status != models.StatusActive && status != models.StatusPending {
			return nil, fmt.Errorf("RESERVATION_CONFLICT_STATUSES: unsupported status %q", part)
		}
		out = append(out, status)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("RESERVATION_CONFLICT_STATUSES must name at least one status")
	}
	return out, nil
}
