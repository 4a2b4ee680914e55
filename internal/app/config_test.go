package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("SOURCE_MODE", "http")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SourceHTTP, cfg.SourceMode)
	assert.Equal(t, 2*time.Second, cfg.SettleWait)
	assert.Equal(t, 30*time.Minute, cfg.ControllerIdleTTL)
	assert.Equal(t, 5*time.Minute, cfg.OverviewTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidateSourceMode(t *testing.T) {
	cfg := Config{SessionSecret: "s", CSRFSecret: "c", SourceMode: " Postgres "}
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = "j"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, SourcePostgres, cfg.SourceMode)

	cfg.SourceMode = "grpc"
	assert.Error(t, cfg.Validate())
}
