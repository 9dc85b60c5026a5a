package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/refhq/sourcescout/internal/config"
)

func memoryConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Sweep:   config.SweepConfig{CooldownDays: 10, MaxPages: 6},
		Fetch:   config.FetchConfig{TimeoutSeconds: 5},
		Storage: config.StorageConfig{Backend: "memory"},
		Logging: config.LoggingConfig{Development: true},
	}
}

func TestNewWiresMemoryBackends(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Repos.Sources)
	require.NotNil(t, a.Repos.Candidates)
	require.NotNil(t, a.Blobs)
	require.NotNil(t, a.Publisher)
	require.NotNil(t, a.Orchestrator)
	require.NotNil(t, a.Review)
	require.NotNil(t, a.Server)
}

func TestNewRejectsUnknownStorageBackend(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Storage.Backend = "s3"
	_, err := New(context.Background(), cfg)
	require.ErrorContains(t, err, "storage backend")
}
