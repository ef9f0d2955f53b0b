package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docunexus/internal/app"
	"docunexus/pkg/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Secrets.Provider = "memory"
	return cfg
}

func TestNewApp_EmbedsWorkerForMemoryQueue(t *testing.T) {
	t.Setenv("PRIMARY_API_KEY", "p-key")
	t.Setenv("AZURE_AI_API_KEY", "a-key")
	ctx := context.Background()
	b, err := app.NewBootstrap(ctx, testConfig(), config.RequiredSecrets)
	require.NoError(t, err)

	a, err := NewApp(ctx, b)
	require.NoError(t, err)
	defer a.config.Close()
	assert.NotNil(t, a.worker)
	assert.NotNil(t, a.router)
	assert.NotNil(t, b.Engine)
}

func TestNewApp_AuthWithoutKey(t *testing.T) {
	t.Setenv("PRIMARY_API_KEY", "p-key")
	t.Setenv("AZURE_AI_API_KEY", "a-key")
	ctx := context.Background()
	cfg := testConfig()
	cfg.API.Middleware.Auth = true
	b, err := app.NewBootstrap(ctx, cfg, config.RequiredSecrets)
	require.NoError(t, err)
	defer b.Close()

	_, err = NewApp(ctx, b)
	assert.Error(t, err)
}

func TestEmbeddedWorker(t *testing.T) {
	assert.True(t, embeddedWorker(""))
	assert.True(t, embeddedWorker("memory"))
	assert.False(t, embeddedWorker("postgres"))
}
