package config_test

import (
	"testing"
	"time"

	"anoa.com/ulike/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ULIKE_ALLOW_ANONYMOUS", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Options.ToggleMaxAttempts)
	assert.Equal(t, 10, cfg.Options.LikersPageSize)
	assert.Equal(t, config.DisplayBottom, cfg.Options.AutoDisplayPosition)
	assert.False(t, cfg.Options.AllowAnonymous)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ULIKE_ALLOW_ANONYMOUS", "true")
	t.Setenv("ULIKE_NOTIFICATIONS", "0")
	t.Setenv("RATE_LIMIT_TOGGLE", "3s")
	t.Setenv("ULIKE_LIKERS_PAGE_SIZE", "25")
	t.Setenv("ULIKE_AUTO_DISPLAY", "top")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.Options.AllowAnonymous)
	assert.False(t, cfg.Options.NotificationsEnabled)
	assert.Equal(t, 3*time.Second, cfg.Options.ToggleRateLimit)
	assert.Equal(t, 25, cfg.Options.LikersPageSize)
	assert.Equal(t, config.DisplayTop, cfg.Options.AutoDisplayPosition)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad duration", key: "RATE_LIMIT_TOGGLE", value: "soon"},
		{name: "bad bool", key: "ULIKE_ALLOW_ANONYMOUS", value: "maybe"},
		{name: "zero page size", key: "ULIKE_LIKERS_PAGE_SIZE", value: "0"},
		{name: "unknown position", key: "ULIKE_AUTO_DISPLAY", value: "sidebar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
