package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/refhq/sourcescout/internal/app"
	"github.com/refhq/sourcescout/internal/config"
)

func withMemoryApp(t *testing.T) {
	t.Helper()
	orig := newApp
	newApp = func(ctx context.Context) (*app.App, error) {
		return app.New(ctx, config.Config{
			Server:  config.ServerConfig{Port: 8080},
			Sweep:   config.SweepConfig{CooldownDays: 10, MaxPages: 6},
			Fetch:   config.FetchConfig{TimeoutSeconds: 5},
			Storage: config.StorageConfig{Backend: "memory"},
			Logging: config.LoggingConfig{Development: true},
		})
	}
	t.Cleanup(func() { newApp = orig })
}

func TestSweepCommandRunsAgainstEmptyStore(t *testing.T) {
	withMemoryApp(t)

	root := newRootCmd()
	root.SetArgs([]string{"sweep", "--limit", "5"})
	require.NoError(t, root.Execute())
}

func TestEnrichCommandRunsAgainstEmptyStore(t *testing.T) {
	withMemoryApp(t)

	root := newRootCmd()
	root.SetArgs([]string{"enrich"})
	require.NoError(t, root.Execute())
}
