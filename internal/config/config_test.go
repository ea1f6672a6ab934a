package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/compass/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MustLoadFromEnv(t *testing.T) {
	t.Setenv("COMPASS_ENV", "local")
	t.Setenv("COMPASS_TRACKER_TIMEOUT", "5s")
	t.Setenv("COMPASS_TRACKER_HIGH_ACCURACY", "false")
	t.Setenv("COMPASS_GEOCODER_PROVIDER", "Nominatim")
	t.Setenv("DB_HOST", "testHost")
	t.Setenv("DB_PORT", "12345")
	t.Setenv("DB_USERNAME", "admin")
	t.Setenv("DB_PASSWORD", "adminpass")
	t.Setenv("DB_NAME", "testName")

	cfg := config.MustLoad()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Equal(t, "testHost", cfg.Database.Host)
	assert.Equal(t, "12345", cfg.Database.Port)
	assert.Equal(t, "admin", cfg.Database.User)
	assert.Equal(t, "adminpass", cfg.Database.Password)
	assert.Equal(t, "testName", cfg.Database.Name)
	assert.Equal(t, 5*time.Second, cfg.Tracker.Timeout)
	assert.False(t, cfg.Tracker.HighAccuracy)
	assert.Equal(t, "nominatim", cfg.Geocoder.Provider)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 10*time.Second, cfg.Tracker.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Tracker.MaximumAge)
	assert.True(t, cfg.Tracker.HighAccuracy)
	assert.Equal(t, 3, cfg.Tracker.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Tracker.BackoffStep)
	assert.Equal(t, "none", cfg.Geocoder.Provider)
	assert.Equal(t, "5432", cfg.Database.Port)
}

func TestLoad_EnvFile(t *testing.T) {
	defer filet.CleanUp(t)
	dir := filet.TmpDir(t, "")
	path := filepath.Join(dir, ".env")
	filet.File(t, path, "COMPASS_GEOCODER_API_KEY=file-key\nCOMPASS_PORT=7000\n")
	t.Cleanup(func() {
		os.Unsetenv("COMPASS_GEOCODER_API_KEY")
	})
	t.Setenv("COMPASS_PORT", "9000")

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.Geocoder.APIKey)
	assert.Equal(t, 9000, cfg.Port, "process environment wins over the file")
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string][2]string{
		"unknown provider": {"COMPASS_GEOCODER_PROVIDER", "visicom"},
		"zero timeout":     {"COMPASS_TRACKER_TIMEOUT", "0s"},
		"negative retries": {"COMPASS_TRACKER_MAX_RETRIES", "-1"},
		"port range":       {"COMPASS_PORT", "70000"},
		"bad duration":     {"COMPASS_TRACKER_BACKOFF_STEP", "soon"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])

			_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	t.Setenv("COMPASS_QUEUE_SIZE", "zero")

	assert.Panics(t, func() {
		config.MustLoad()
	})
}
