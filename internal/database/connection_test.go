package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/config"
)

func TestNewConnectionSQLite(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver: "sqlite",
		Path:   "file:connection_test?mode=memory&cache=shared",
	}}

	db, err := NewConnection(cfg, zap.NewNop())
	require.NoError(t, err)

	for _, m := range Models() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
	assert.True(t, db.Migrator().HasTable("order_payment_details"))
	assert.True(t, db.Migrator().HasTable("delivery_history"))
}
