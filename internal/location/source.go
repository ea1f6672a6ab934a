// Package location abstracts the platform location service that trackers watch.
package location

import (
	"errors"
	"fmt"
	"time"

	"github.com/UnknownOlympus/compass/internal/models"
)

// Platform error codes, as reported by watchPosition-style APIs.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// DefaultTimeout is the acquisition timeout used when none is configured.
const DefaultTimeout = 10 * time.Second

// ErrUnavailable is returned by Watch when the source cannot serve subscriptions.
var ErrUnavailable = errors.New("location service unavailable")

// WatchID identifies an open watch on a Source.
type WatchID uint64

// WatchOptions configures a watch subscription.
type WatchOptions struct {
	HighAccuracy bool          // Prefer the most accurate fix the device can produce.
	MaximumAge   time.Duration // Oldest cached fix that may be delivered; 0 means always fresh.
	Timeout      time.Duration // Maximum wait for a fix before a Timeout error is reported.
}

// DefaultWatchOptions returns high accuracy, no caching and DefaultTimeout.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{HighAccuracy: true, MaximumAge: 0, Timeout: DefaultTimeout}
}

// PositionError is a coded failure delivered by a Source.
type PositionError struct {
	Code    int    `json:"code"    yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position error %d: %s", e.Code, e.Message)
}

// Kind maps the platform code to an ErrorKind; unrecognised codes are Unknown.
func (e *PositionError) Kind() models.ErrorKind {
	switch e.Code {
	case CodePermissionDenied:
		return models.ErrorPermissionDenied
	case CodePositionUnavailable:
		return models.ErrorPositionUnavailable
	case CodeTimeout:
		return models.ErrorTimeout
	default:
		return models.ErrorUnknown
	}
}

// ReadingFunc receives successful fixes.
type ReadingFunc func(models.Reading)

// ErrorFunc receives coded failures.
type ErrorFunc func(*PositionError)

// Source is a continuous location service.
//
// Callbacks for a single watch are delivered serially and in emission order. ClearWatch
// stops delivery of queued events; a callback already running when ClearWatch is called may
// still complete, so consumers must guard state with their own handle identity.
type Source interface {
	Available() bool
	Watch(opts WatchOptions, onReading ReadingFunc, onError ErrorFunc) (WatchID, error)
	ClearWatch(id WatchID)
}

// Unsupported is a Source for hosts without a location service.
type Unsupported struct{}

func (Unsupported) Available() bool { return false }

func (Unsupported) Watch(WatchOptions, ReadingFunc, ErrorFunc) (WatchID, error) {
	return 0, ErrUnavailable
}

func (Unsupported) ClearWatch(WatchID) {}
