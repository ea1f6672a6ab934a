package settings_test

import (
	"testing"

	"github.com/UnknownOlympus/compass/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := t.Context()
	store := settings.NewMemoryStore()

	_, err := store.Get(ctx, "tracker.timeout")
	require.ErrorIs(t, err, settings.ErrNotFound)

	require.NoError(t, store.Set(ctx, "tracker.timeout", "5s"))
	value, err := store.Get(ctx, "tracker.timeout")
	require.NoError(t, err)
	assert.Equal(t, "5s", value)

	require.NoError(t, store.Set(ctx, "tracker.timeout", "7s"))
	value, _ = store.Get(ctx, "tracker.timeout")
	assert.Equal(t, "7s", value)

	require.NoError(t, store.Clear(ctx, "tracker.timeout"))
	require.NoError(t, store.Clear(ctx, "tracker.timeout"))
	_, err = store.Get(ctx, "tracker.timeout")
	require.ErrorIs(t, err, settings.ErrNotFound)
}
