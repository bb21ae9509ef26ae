package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const defaultShareholders = "Rex:0.35,Simon:0.35,Paul:0.30"

type Config struct {
	ServerAddress string
	Environment   string
	LogLevel      string
	Currency      string
	Database      DatabaseConfig
	Migration     MigrationConfig
	Redis         RedisConfig
	ShareLinks    ShareLinkConfig
	Shareholders  []Shareholder
}

type DatabaseConfig struct {
	// Driver is "mysql" or "sqlite"; sqlite is for local runs and uses Path.
	Driver   string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Params   string
}

type MigrationConfig struct {
	Dir string
}

// RedisConfig is optional; an empty Addr keeps passcode attempt counters in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ShareLinkConfig struct {
	MaxAttempts   int
	AttemptWindow time.Duration
}

// Shareholder is one fixed participant in the NPA component split.
type Shareholder struct {
	Name     string
	Fraction decimal.Decimal
}

func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CURRENCY", "GHS")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_PATH", "fuel.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_PARAMS", "parseTime=true")
	v.SetDefault("MIGRATION_DIR", "migrations")
	v.SetDefault("SHAREHOLDERS", defaultShareholders)
	v.SetDefault("SHARE_LINK_MAX_ATTEMPTS", 10)
	v.SetDefault("SHARE_LINK_ATTEMPT_WINDOW", time.Hour)

	shareholders, err := ParseShareholders(v.GetString("SHAREHOLDERS"))
	if err != nil {
		return nil, fmt.Errorf("error reading SHAREHOLDERS: %w", err)
	}

	config := &Config{
		ServerAddress: v.GetString("SERVER_ADDRESS"),
		Environment:   v.GetString("ENVIRONMENT"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		Currency:      strings.ToUpper(v.GetString("CURRENCY")),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Path:     v.GetString("DB_PATH"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			Params:   v.GetString("DB_PARAMS"),
		},
		Migration: MigrationConfig{
			Dir: v.GetString("MIGRATION_DIR"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		ShareLinks: ShareLinkConfig{
			MaxAttempts:   v.GetInt("SHARE_LINK_MAX_ATTEMPTS"),
			AttemptWindow: v.GetDuration("SHARE_LINK_ATTEMPT_WINDOW"),
		},
		Shareholders: shareholders,
	}

	switch config.Database.Driver {
	case "mysql":
		if config.Database.Name == "" {
			return nil, fmt.Errorf("DB_NAME is required")
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.Database.Driver)
	}
	if config.ShareLinks.MaxAttempts <= 0 {
		return nil, fmt.Errorf("SHARE_LINK_MAX_ATTEMPTS must be positive")
	}

	return config, nil
}

// ParseShareholders reads "Name:fraction,Name:fraction". Fractions must be
// non-negative and sum to at most 1.
func ParseShareholders(raw string) ([]Shareholder, error) {
	var out []Shareholder
	seen := make(map[string]bool)
	sum := decimal.Zero

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, frac, ok := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid shareholder entry %q", part)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate shareholder %q", name)
		}
		f, err := decimal.NewFromString(strings.TrimSpace(frac))
		if err != nil {
			return nil, fmt.Errorf("invalid fraction for %s: %w", name, err)
		}
		if f.IsNegative() {
			return nil, fmt.Errorf("negative fraction for %s", name)
		}
		seen[name] = true
		sum = sum.Add(f)
		out = append(out, Shareholder{Name: name, Fraction: f})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no shareholders configured")
	}
	if sum.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("shareholder fractions sum to %s, more than 1", sum)
	}
	return out, nil
}

// GetDSN returns the MySQL DSN string
func (c *Config) GetDSN() string {
	return c.mysqlConfig(c.Database.Name).FormatDSN()
}

// GetRootDSN returns a DSN without a schema, used to create the database.
func (c *Config) GetRootDSN() string {
	return c.mysqlConfig("").FormatDSN()
}

// GetMigrationDBURL returns the database URL for migrations
func (c *Config) GetMigrationDBURL() string {
	return "mysql://" + c.GetDSN()
}

func (c *Config) mysqlConfig(dbName string) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = c.Database.User
	mc.Passwd = c.Database.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port)
	mc.DBName = dbName
	mc.ParseTime = true
	mc.MultiStatements = true
	// Compare-and-set updates rely on matched, not changed, row counts.
	mc.ClientFoundRows = true

	if c.Database.Params != "" {
		params := make(map[string]string)
		for _, kv := range strings.Split(c.Database.Params, "&") {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "parseTime" || k == "multiStatements" {
				continue
			}
			params[k] = v
		}
		if len(params) > 0 {
			mc.Params = params
		}
	}
	return mc
}
