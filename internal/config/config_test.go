package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "brewpos.db", cfg.DB.DSN)
	assert.False(t, cfg.Checkout.AtomicCommit)
	assert.True(t, cfg.Checkout.Consumables)
	assert.Equal(t, 500*time.Millisecond, cfg.Checkout.CashStageDelay)
	assert.True(t, cfg.App.IsDev())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BREWPOS_APP_PORT", "9090")
	t.Setenv("BREWPOS_CHECKOUT_ATOMIC_COMMIT", "true")
	t.Setenv("BREWPOS_CHECKOUT_STAGE_DELAY", "250ms")
	t.Setenv("BREWPOS_TERMINAL_ID", "front-counter")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.True(t, cfg.Checkout.AtomicCommit)
	assert.Equal(t, 250*time.Millisecond, cfg.Checkout.StageDelay)
	assert.Equal(t, "front-counter", cfg.Checkout.SessionContext().TerminalID)
}

func TestLoadRejectsNegativeDelay(t *testing.T) {
	t.Setenv("BREWPOS_CHECKOUT_STAGE_DELAY", "-1s")
	_, err := Load()
	require.Error(t, err)
}
