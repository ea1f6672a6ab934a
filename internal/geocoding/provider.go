package geocoding

import (
	"context"

	"github.com/UnknownOlympus/compass/internal/models"
)

// Provider is an interface that defines a method for reverse geocoding a point.
// The Reverse method takes a context and coordinates as input,
// and returns a human-readable address and an error if any occurs.
type Provider interface {
	Reverse(ctx context.Context, coords models.Coordinates) (string, error)
}

// NoopProvider leaves positions unlabelled.
type NoopProvider struct{}

func (NoopProvider) Reverse(context.Context, models.Coordinates) (string, error) {
	return "", nil
}
