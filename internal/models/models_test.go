package models_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/UnknownOlympus/compass/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReading_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"origin", 0, 0, false},
		{"new york", 40.0, -74.0, false},
		{"north pole", 90, 0, false},
		{"south pole", -90, 180, false},
		{"antimeridian west", 12.5, -180, false},
		{"fractional", 51.507351, -0.127758, false},
		{"latitude too high", 200, 0, true},
		{"latitude too low", -90.0001, 0, true},
		{"longitude too high", 0, 180.5, true},
		{"longitude too low", 0, -181, true},
		{"nan latitude", math.NaN(), 0, true},
		{"infinite longitude", 0, math.Inf(1), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := models.Reading{Latitude: tc.lat, Longitude: tc.lng}.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, models.ErrInvalidCoordinates)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestReading_Position(t *testing.T) {
	acc := 10.0
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	pos := models.Reading{Latitude: 40, Longitude: -74, Accuracy: &acc, Timestamp: ts}.Position()

	assert.InDelta(t, 40.0, pos.Latitude, 0)
	assert.InDelta(t, -74.0, pos.Longitude, 0)
	require.NotNil(t, pos.Accuracy)
	assert.InDelta(t, 10.0, *pos.Accuracy, 0)
	assert.Equal(t, ts, pos.ObservedAt)
}

func TestErrorKind_Message(t *testing.T) {
	assert.Equal(t, "Geolocation is not supported by your browser", models.ErrorUnsupported.Message())
	assert.Equal(t, "Please allow location access to use AR features", models.ErrorPermissionDenied.Message())
	assert.Equal(t, "Location information is unavailable", models.ErrorPositionUnavailable.Message())
	assert.Equal(t, "Location request timed out", models.ErrorTimeout.Message())
	assert.Equal(t, "Invalid GPS coordinates received", models.ErrorInvalidCoordinates.Message())
	assert.Equal(t, "An error occurred while getting your location", models.ErrorUnknown.Message())
	assert.Equal(t, models.ErrorUnknown.Message(), models.ErrorKind(42).Message())
}

func TestErrorKind_Retryable(t *testing.T) {
	assert.True(t, models.ErrorPermissionDenied.Retryable())
	assert.True(t, models.ErrorPositionUnavailable.Retryable())
	assert.True(t, models.ErrorTimeout.Retryable())
	assert.True(t, models.ErrorUnknown.Retryable())
	assert.False(t, models.ErrorUnsupported.Retryable())
	assert.False(t, models.ErrorInvalidCoordinates.Retryable())
}

func TestErrorDescriptor_JSON(t *testing.T) {
	desc := models.NewErrorDescriptor(models.ErrorTimeout, "watch expired")

	raw, err := json.Marshal(desc)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"kind":"timeout","message":"Location request timed out","cause":"watch expired"}`,
		string(raw))

	var decoded models.ErrorDescriptor
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *desc, decoded)

	var kind models.ErrorKind
	assert.Error(t, kind.UnmarshalText([]byte("bogus")))
}

func TestTrackerState_Clone(t *testing.T) {
	acc := 5.0
	orig := models.TrackerState{
		Current:   &models.Position{Coordinates: models.Coordinates{Latitude: 1, Longitude: 2}, Accuracy: &acc},
		LastError: models.NewErrorDescriptor(models.ErrorTimeout, ""),
		Status:    models.StatusActive,
	}

	clone := orig.Clone()
	clone.Current.Latitude = 9
	*clone.Current.Accuracy = 99
	clone.LastError.Kind = models.ErrorUnknown

	assert.InDelta(t, 1.0, orig.Current.Latitude, 0)
	assert.InDelta(t, 5.0, *orig.Current.Accuracy, 0)
	assert.Equal(t, models.ErrorTimeout, orig.LastError.Kind)
}
