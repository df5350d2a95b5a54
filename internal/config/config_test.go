package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaults_DerivesDriver(t *testing.T) {
	cfg := &Config{BuildTarget: "local", DBDriver: "auto", NotifySender: "http"}
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "sqlite", cfg.DBDriver)

	cfg = &Config{BuildTarget: "cloud", DBDriver: "", NotifySender: "http"}
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestResolveDefaults_ExplicitDriverWins(t *testing.T) {
	cfg := &Config{BuildTarget: "local", DBDriver: "postgres", NotifySender: "none"}
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestResolveDefaults_RejectsUnknowns(t *testing.T) {
	assert.Error(t, (&Config{BuildTarget: "staging"}).ResolveDefaults())
	assert.Error(t, (&Config{BuildTarget: "local", DBDriver: "oracle", NotifySender: "http"}).ResolveDefaults())
	assert.Error(t, (&Config{BuildTarget: "local", DBDriver: "sqlite", NotifySender: "carrier-pigeon"}).ResolveDefaults())
}

func TestNew_LoadsFromEnvironment(t *testing.T) {
	t.Setenv("TRIBE_SERVER_BUILD_TARGET", "local")
	t.Setenv("TRIBE_SERVER_HTTP_PORT", "9099")
	t.Setenv("TRIBE_SERVER_NOTIFY_SENDER", "none")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 9099, cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, ":9099", cfg.GetHTTPAddr())
}

func TestNewForTesting(t *testing.T) {
	cfg := NewForTesting()
	assert.True(t, cfg.IsTesting())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "none", cfg.NotifySender)
	assert.Empty(t, cfg.SQLitePath)
}
