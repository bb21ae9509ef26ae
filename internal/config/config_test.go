package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShareholders(t *testing.T) {
	got, err := ParseShareholders(defaultShareholders)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Rex", got[0].Name)
	assert.True(t, got[0].Fraction.Equal(decimal.RequireFromString("0.35")))
	assert.Equal(t, "Paul", got[2].Name)
	assert.True(t, got[2].Fraction.Equal(decimal.RequireFromString("0.30")))
}

func TestParseShareholdersRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"no colon":   "Rex0.5",
		"bad number": "Rex:abc",
		"negative":   "Rex:-0.1",
		"over one":   "Rex:0.6,Simon:0.6",
		"duplicate":  "Rex:0.2,Rex:0.2",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseShareholders(raw)
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: 3306, User: "app", Password: "secret", Name: "fuel", Params: "parseTime=true&loc=UTC",
	}}

	dsn := cfg.GetDSN()
	assert.Contains(t, dsn, "app:secret@tcp(db:3306)/fuel?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "loc=UTC")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Equal(t, "mysql://"+cfg.GetDSN(), cfg.GetMigrationDBURL())
	assert.Contains(t, cfg.GetRootDSN(), "@tcp(db:3306)/?")
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "test.db")
	t.Setenv("CURRENCY", "ghs")
	t.Setenv("SHARE_LINK_MAX_ATTEMPTS", "3")
	t.Setenv("SHAREHOLDERS", "A:0.5,B:0.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "test.db", cfg.Database.Path)
	assert.Equal(t, "GHS", cfg.Currency)
	assert.Equal(t, 3, cfg.ShareLinks.MaxAttempts)
	assert.Len(t, cfg.Shareholders, 2)
}

func TestLoadConfigRequiresDBName(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_NAME", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}
