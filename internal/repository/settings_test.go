package repository_test

import (
	"regexp"
	"testing"

	"github.com/UnknownOlympus/compass/internal/repository"
	"github.com/UnknownOlympus/compass/internal/settings"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsStore(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("get missing key", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM settings WHERE key = $1;`)).
			WithArgs("k").
			WillReturnRows(pgxmock.NewRows([]string{"value"}))

		_, err = repository.NewSettingsStore(mock).Get(ctx, "k")

		require.ErrorIs(t, err, settings.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get value", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM settings WHERE key = $1;`)).
			WithArgs("k").
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("v"))

		value, err := repository.NewSettingsStore(mock).Get(ctx, "k")

		require.NoError(t, err)
		assert.Equal(t, "v", value)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("set and clear", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := repository.NewSettingsStore(mock)

		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO settings (key, value) VALUES ($1, $2)`)).
			WithArgs("k", "v").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM settings WHERE key = $1;`)).
			WithArgs("k").
			WillReturnError(assert.AnError)

		require.NoError(t, store.Set(ctx, "k", "v"))
		err = store.Clear(ctx, "k")
		require.ErrorIs(t, err, assert.AnError)
		require.ErrorContains(t, err, "failed to clear setting")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
