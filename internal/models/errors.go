package models

import (
	"fmt"
	"strings"
)

// ErrorKind classifies why the tracker could not produce a position.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorUnsupported
	ErrorPermissionDenied
	ErrorPositionUnavailable
	ErrorTimeout
	ErrorInvalidCoordinates
)

var (
	errorKindNames = map[ErrorKind]string{
		ErrorUnknown:             "unknown",
		ErrorUnsupported:         "unsupported",
		ErrorPermissionDenied:    "permission_denied",
		ErrorPositionUnavailable: "position_unavailable",
		ErrorTimeout:             "timeout",
		ErrorInvalidCoordinates:  "invalid_coordinates",
	}

	errorKindMessages = map[ErrorKind]string{
		ErrorUnknown:             "An error occurred while getting your location",
		ErrorUnsupported:         "Geolocation is not supported by your browser",
		ErrorPermissionDenied:    "Please allow location access to use AR features",
		ErrorPositionUnavailable: "Location information is unavailable",
		ErrorTimeout:             "Location request timed out",
		ErrorInvalidCoordinates:  "Invalid GPS coordinates received",
	}
)

// String returns the snake_case name of the kind, used in logs, metrics and JSON.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return errorKindNames[ErrorUnknown]
}

// Message returns the user-facing text consumers may display verbatim.
func (k ErrorKind) Message() string {
	if msg, ok := errorKindMessages[k]; ok {
		return msg
	}
	return errorKindMessages[ErrorUnknown]
}

// Retryable reports whether a failure of this kind goes through the backoff policy.
// Unsupported is permanent and InvalidCoordinates is a data rejection, not a watch failure.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorPermissionDenied, ErrorPositionUnavailable, ErrorTimeout, ErrorUnknown:
		return true
	case ErrorUnsupported, ErrorInvalidCoordinates:
		return false
	}
	return false
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ErrorKind) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for kind, n := range errorKindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", name)
}

// ErrorDescriptor is the last failure recorded by a tracker.
type ErrorDescriptor struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   string    `json:"cause,omitempty"` // Platform-provided detail, if any.
}

// NewErrorDescriptor builds a descriptor carrying the fixed message for kind.
func NewErrorDescriptor(kind ErrorKind, cause string) *ErrorDescriptor {
	return &ErrorDescriptor{Kind: kind, Message: kind.Message(), Cause: cause}
}
