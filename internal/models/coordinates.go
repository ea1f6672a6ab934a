package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidCoordinates is returned when a reading falls outside the valid WGS84 ranges.
var ErrInvalidCoordinates = errors.New("coordinates out of range")

var validate = validator.New()

// Coordinates represents a geographical point defined by its latitude and longitude.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`  // Latitude of the geographical point.
	Longitude float64 `json:"longitude"` // Longitude of the geographical point.
}

// Position is a validated location fix exposed to consumers.
type Position struct {
	Coordinates

	Accuracy   *float64  `json:"accuracy,omitempty"` // Accuracy radius in meters, if reported.
	ObservedAt time.Time `json:"observed_at"`        // Source clock of the observation.
}

// Reading is a raw fix as delivered by a location source, before validation.
type Reading struct {
	Latitude  float64   `json:"latitude"  yaml:"latitude"  validate:"latitude"`
	Longitude float64   `json:"longitude" yaml:"longitude" validate:"longitude"`
	Accuracy  *float64  `json:"accuracy"  yaml:"accuracy"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Validate checks that the reading lies within [-90,90] latitude and [-180,180] longitude.
func (r Reading) Validate() error {
	for _, v := range []float64{r.Latitude, r.Longitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinates, r.Latitude, r.Longitude)
		}
	}

	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinates, r.Latitude, r.Longitude)
	}

	return nil
}

// Position converts the reading into a Position. Callers must validate first.
func (r Reading) Position() Position {
	return Position{
		Coordinates: Coordinates{Latitude: r.Latitude, Longitude: r.Longitude},
		Accuracy:    r.Accuracy,
		ObservedAt:  r.Timestamp,
	}
}
