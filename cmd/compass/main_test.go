package main

import (
	"context"
	"testing"
	"time"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/compass/internal/location"
	"github.com/UnknownOlympus/compass/internal/models"
	"github.com/UnknownOlympus/compass/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		env   string
		debug bool
		info  bool
		warn  bool
	}{
		{env: envLocal, debug: true, info: true, warn: true},
		{env: envDev, debug: false, info: true, warn: true},
		{env: envProd, debug: false, info: false, warn: true},
		{env: "unknown", debug: false, info: false, warn: false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			log := setupLogger(tt.env)
			require.NotNil(t, log)
			assert.Equal(t, tt.debug, log.Handler().Enabled(ctx, -4))
			assert.Equal(t, tt.info, log.Handler().Enabled(ctx, 0))
			assert.Equal(t, tt.warn, log.Handler().Enabled(ctx, 4))
		})
	}
}

func TestRootCmd_Commands(t *testing.T) {
	root := rootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "replay"}, names)
}

const activeScript = `steps:
  - delay: 5ms
    reading:
      latitude: 50.4501
      longitude: 30.5234
      accuracy: 12.5
  - delay: 5ms
    reading:
      latitude: 50.4502
      longitude: 30.5236
`

const failingScript = `steps:
  - delay: 5ms
    error:
      code: 1
      message: User denied Geolocation
`

func replayScript(t *testing.T, body string) *location.Replay {
	t.Helper()
	defer filet.CleanUp(t)

	dir := filet.TmpDir(t, "")
	path := filet.File(t, dir+"/script.yaml", body).Name()

	script, err := location.LoadScript(path)
	require.NoError(t, err)

	return location.NewReplay(script, setupLogger(envLocal))
}

func TestAwaitReplay(t *testing.T) {
	t.Run("settles active after the script drains", func(t *testing.T) {
		source := replayScript(t, activeScript)
		trk := tracker.New(source, tracker.DefaultConfig())
		defer trk.Start()()

		state, err := awaitReplay(context.Background(), trk, source, 20*time.Millisecond)
		require.NoError(t, err)

		assert.Equal(t, models.StatusActive, state.Status)
		require.NotNil(t, state.Current)
		assert.InDelta(t, 50.4502, state.Current.Latitude, 1e-9)
		assert.Zero(t, source.Remaining())
	})

	t.Run("returns once the tracker fails", func(t *testing.T) {
		source := replayScript(t, failingScript)
		cfg := tracker.DefaultConfig()
		cfg.MaxRetries = 0
		trk := tracker.New(source, cfg)
		defer trk.Start()()

		state, err := awaitReplay(context.Background(), trk, source, time.Hour)
		require.NoError(t, err)

		assert.Equal(t, models.StatusFailed, state.Status)
		require.NotNil(t, state.LastError)
		assert.Equal(t, models.ErrorPermissionDenied, state.LastError.Kind)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		source := replayScript(t, activeScript)
		trk := tracker.New(source, tracker.DefaultConfig())
		defer trk.Start()()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := awaitReplay(ctx, trk, source, time.Hour)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunReplay_MissingScript(t *testing.T) {
	err := runReplay(context.Background(), "/nonexistent/script.yaml", replayOptions{env: envLocal})
	require.Error(t, err)
}
