//go:build integration

package repository_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/compass/internal/models"
	"github.com/UnknownOlympus/compass/internal/repository"
	"github.com/UnknownOlympus/compass/internal/settings"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestRepository_Postgres(t *testing.T) {
	ctx := t.Context()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("compass"),
		postgres.WithUsername("compass"),
		postgres.WithPassword("compass"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := repository.Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	repo := repository.NewRepository(pool, slog.Default())
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx), "schema must be re-entrant")

	sessionID := uuid.New()
	acc := 8.0
	older := models.Position{
		Coordinates: models.Coordinates{Latitude: 40, Longitude: -74},
		ObservedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := models.Position{
		Coordinates: models.Coordinates{Latitude: 41, Longitude: -73},
		Accuracy:    &acc,
		ObservedAt:  older.ObservedAt.Add(time.Minute),
	}

	_, err = repo.LastPosition(ctx, "phone")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.SavePosition(ctx, sessionID, "phone", newer, "Somewhere"))
	require.NoError(t, repo.SavePosition(ctx, sessionID, "phone", older, ""))

	last, err := repo.LastPosition(ctx, "phone")
	require.NoError(t, err)
	assert.InDelta(t, 41.0, last.Latitude, 0)
	require.NotNil(t, last.Accuracy)
	assert.InDelta(t, 8.0, *last.Accuracy, 0)
	assert.True(t, newer.ObservedAt.Equal(last.ObservedAt))

	state := models.TrackerState{Status: models.StatusActive, Current: &newer, Generation: 1}
	require.NoError(t, repo.SaveState(ctx, sessionID, "phone", state))
	state.Status = models.StatusFailed
	state.LastError = models.NewErrorDescriptor(models.ErrorTimeout, "")
	require.NoError(t, repo.SaveState(ctx, sessionID, "phone", state))

	var status, kind string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT status, error_kind FROM tracker_states WHERE session_id = $1`, sessionID.String()).
		Scan(&status, &kind))
	assert.Equal(t, "failed", status)
	assert.Equal(t, "timeout", kind)

	store := repository.NewSettingsStore(pool)
	require.NoError(t, store.Set(ctx, "tracker.timeout.phone", "5s"))
	require.NoError(t, store.Set(ctx, "tracker.timeout.phone", "6s"))
	value, err := store.Get(ctx, "tracker.timeout.phone")
	require.NoError(t, err)
	assert.Equal(t, "6s", value)
	require.NoError(t, store.Clear(ctx, "tracker.timeout.phone"))
	_, err = store.Get(ctx, "tracker.timeout.phone")
	require.ErrorIs(t, err, settings.ErrNotFound)
}
