package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/osib")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.GraphTxTimeout)
	assert.Equal(t, "http://plugins:42562", cfg.Plugins.URL)
	assert.Equal(t, int64(8), cfg.Plugins.MaxParallel)
	assert.False(t, cfg.Rabbit.IsConfigured())
	assert.False(t, cfg.Storage.IsConfigured())
	assert.Equal(t, "plugins", cfg.Storage.Bucket)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/osib")
	t.Setenv("GRAPH_TX_TIMEOUT", "5s")
	t.Setenv("WS_ALLOWED_ORIGINS", "http://localhost:3000,https://osib.example")
	t.Setenv("RABBITMQ_HOST", "rabbit")
	t.Setenv("RABBITMQ_USER", "u")
	t.Setenv("RABBITMQ_PASSWORD", "p")
	t.Setenv("AUTH_URL", "http://auth:4000/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.GraphTxTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "https://osib.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Rabbit.IsConfigured())
	assert.Equal(t, "amqp://u:p@rabbit:5672/", cfg.Rabbit.URL())
	assert.Equal(t, "http://auth:4000/jwks", cfg.Auth.JWKSURL())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)
}
