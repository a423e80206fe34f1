package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port      string `mapstructure:"PORT"`
	Env       string `mapstructure:"ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	SupabaseURL        string   `mapstructure:"SUPABASE_URL"`
	SupabaseServiceKey string   `mapstructure:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret  string   `mapstructure:"SUPABASE_JWT_SECRET"`
	StaticTokens       []string `mapstructure:"STATIC_TOKENS"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	LocalCache    bool   `mapstructure:"LOCAL_CACHE"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	BackupCronSecret string `mapstructure:"BACKUP_CRON_SECRET"`
	BackupSchedule   string `mapstructure:"BACKUP_SCHEDULE"`
	BackupBucket     string `mapstructure:"BACKUP_BUCKET"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`
	GoogleRefreshToken string `mapstructure:"GOOGLE_REFRESH_TOKEN"`
	GoogleCalendarID   string `mapstructure:"GOOGLE_CALENDAR_ID"`

	ClinicTimezone string `mapstructure:"CLINIC_TIMEZONE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "LOG_FORMAT",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_JWT_SECRET", "STATIC_TOKENS",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "LOCAL_CACHE",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"BACKUP_CRON_SECRET", "BACKUP_SCHEDULE", "BACKUP_BUCKET",
	"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL",
	"GOOGLE_REFRESH_TOKEN", "GOOGLE_CALENDAR_ID",
	"CLINIC_TIMEZONE",
}

// Load reads configuration from the environment, falling back to a .env file in
// the working directory when present.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCAL_CACHE", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("BACKUP_SCHEDULE", "0 3 * * *")
	v.SetDefault("BACKUP_BUCKET", "backups")
	v.SetDefault("GOOGLE_CALENDAR_ID", "primary")
	v.SetDefault("CLINIC_TIMEZONE", "America/Sao_Paulo")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.StaticTokens = splitList(cfg.StaticTokens)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// splitList normalises list values that may arrive as a single comma separated entry.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MirrorEnabled reports whether reads fall back to the Redis mirror.
func (c *Config) MirrorEnabled() bool {
	return c.LocalCache && c.RedisAddr != ""
}

// CalendarEnabled reports whether Google Calendar events are merged into the agenda.
func (c *Config) CalendarEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRefreshToken != ""
}

// Location returns the clinic time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ClinicTimezone)
}

// Validate checks settings that would otherwise fail late at request time.
func (c *Config) Validate() error {
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	if c.IsProduction() {
		if c.SupabaseJWTSecret == "" && len(c.StaticTokens) == 0 {
			return fmt.Errorf("SUPABASE_JWT_SECRET or STATIC_TOKENS must be set in production")
		}
		if c.BackupCronSecret == "" {
			return fmt.Errorf("BACKUP_CRON_SECRET is required in production")
		}
	}
	if c.LocalCache && c.RedisAddr == "" {
		return fmt.Errorf("LOCAL_CACHE requires REDIS_ADDR")
	}
	return nil
}
