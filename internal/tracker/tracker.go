// Package tracker keeps a validated, continuously updated device position on top of a
// location.Source, retrying failed subscriptions with a bounded linear backoff.
package tracker

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/compass/internal/location"
	"github.com/UnknownOlympus/compass/internal/metrics"
	"github.com/UnknownOlympus/compass/internal/models"
)

// Defaults for Config.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffStep = 2 * time.Second
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it through an adapter.
type AfterFunc func(d time.Duration, f func()) Timer

// CancelFunc releases a tracking subscription.
type CancelFunc func()

// Observer receives every state transition. Observers run with the tracker locked and must
// not call Start, Stop, Restart or State synchronously.
type Observer func(models.TrackerState)

// Config controls the watch and the retry policy.
type Config struct {
	Watch       location.WatchOptions
	MaxRetries  int           // Consecutive failures tolerated before the tracker fails.
	BackoffStep time.Duration // Delay before retry n is BackoffStep*n.
}

// DefaultConfig returns high accuracy, fresh fixes, a 10s timeout and 3 retries at 2s steps.
func DefaultConfig() Config {
	return Config{
		Watch:       location.DefaultWatchOptions(),
		MaxRetries:  DefaultMaxRetries,
		BackoffStep: DefaultBackoffStep,
	}
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker logger.
func WithLogger(log *slog.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

// WithMetrics records tracker activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithAfterFunc replaces the timer used for backoff scheduling.
func WithAfterFunc(fn AfterFunc) Option {
	return func(t *Tracker) { t.afterFunc = fn }
}

type observerEntry struct {
	id int
	fn Observer
}

// Tracker owns one location subscription and its TrackerState.
type Tracker struct {
	mu        sync.Mutex
	source    location.Source
	cfg       Config
	log       *slog.Logger
	metrics   *metrics.Metrics
	afterFunc AfterFunc

	state     models.TrackerState
	watchID   location.WatchID
	watching  bool
	pending   Timer
	observers []observerEntry
	nextObs   int
}

// New creates an idle tracker. A nil source behaves like a host without location support.
func New(source location.Source, cfg Config, opts ...Option) *Tracker {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	t := &Tracker{
		source: source,
		cfg:    cfg,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		state: models.TrackerState{Status: models.StatusIdle},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start opens the subscription and returns a handle that stops it. Calling Start on a running
// tracker replaces the current subscription and resets the attempt counter.
func (t *Tracker) Start() CancelFunc {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.startLocked()

	return t.Stop
}

// Stop cancels the subscription and any pending retry. It is safe to call in any state.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if t.state.Status != models.StatusIdle {
		t.state.Status = models.StatusIdle
		t.log.Debug("Tracker stopped")
		t.notifyLocked()
	}
}

// Restart is Stop followed by Start with the attempt counter reset.
func (t *Tracker) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.startLocked()
}

// State returns a snapshot of the current state.
func (t *Tracker) State() models.TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Subscribe registers fn for every subsequent transition and returns its removal func.
func (t *Tracker) Subscribe(fn Observer) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextObs++
	id := t.nextObs
	t.observers = append(t.observers, observerEntry{id: id, fn: fn})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, entry := range t.observers {
			if entry.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

func (t *Tracker) startLocked() {
	t.state.Attempt = 0

	if t.source == nil || !t.source.Available() {
		t.unsupportedLocked()
		return
	}

	t.subscribeLocked()
}

func (t *Tracker) unsupportedLocked() {
	t.state.Status = models.StatusFailed
	t.state.LastError = models.NewErrorDescriptor(models.ErrorUnsupported, "")
	t.countError(models.ErrorUnsupported)
	t.countFailed()
	t.log.Warn("Location service is not available")
	t.notifyLocked()
}

// subscribeLocked opens a fresh watch under a new generation.
func (t *Tracker) subscribeLocked() {
	t.state.Generation++
	gen := t.state.Generation
	t.state.Status = models.StatusInitializing

	id, err := t.source.Watch(
		t.cfg.Watch,
		func(reading models.Reading) { t.handleReading(gen, reading) },
		func(perr *location.PositionError) { t.handleError(gen, perr) },
	)
	if err != nil {
		if errors.Is(err, location.ErrUnavailable) {
			t.unsupportedLocked()
			return
		}
		t.log.Error("Failed to open location watch", "error", err)
		t.notifyLocked()
		t.failLocked(models.ErrorUnknown, err.Error())
		return
	}

	t.watchID = id
	t.watching = true
	t.log.Debug("Location watch opened", "generation", gen, "attempt", t.state.Attempt)
	t.notifyLocked()
}

func (t *Tracker) handleReading(gen uint64, reading models.Reading) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.currentLocked(gen) {
		return
	}

	if err := reading.Validate(); err != nil {
		t.state.LastError = models.NewErrorDescriptor(models.ErrorInvalidCoordinates, err.Error())
		t.countReading("rejected")
		t.countError(models.ErrorInvalidCoordinates)
		t.log.Warn("Dropped invalid reading", "lat", reading.Latitude, "lng", reading.Longitude)
		t.notifyLocked()
		return
	}

	pos := reading.Position()
	t.state.Current = &pos
	t.state.LastError = nil
	t.state.Attempt = 0
	t.state.Status = models.StatusActive
	t.countReading("accepted")
	t.notifyLocked()
}

func (t *Tracker) handleError(gen uint64, perr *location.PositionError) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.currentLocked(gen) {
		return
	}

	t.failLocked(perr.Kind(), perr.Message)
}

// failLocked records a watch failure and either schedules a retry or gives up.
// Kinds that are not retryable fail immediately.
func (t *Tracker) failLocked(kind models.ErrorKind, cause string) {
	t.state.LastError = models.NewErrorDescriptor(kind, cause)
	t.countError(kind)
	t.releaseWatchLocked()

	if kind.Retryable() && t.state.Attempt < t.cfg.MaxRetries {
		t.state.Attempt++
		delay := t.cfg.BackoffStep * time.Duration(t.state.Attempt)
		gen := t.state.Generation
		t.pending = t.afterFunc(delay, func() { t.resubscribe(gen) })
		t.countRetry()
		t.log.Warn("Location watch failed, retrying",
			"kind", kind.String(), "attempt", t.state.Attempt, "delay", delay)
		t.notifyLocked()
		return
	}

	t.state.Status = models.StatusFailed
	t.countFailed()
	t.log.Error("Location watch failed, retries exhausted", "kind", kind.String(), "attempts", t.state.Attempt)
	t.notifyLocked()
}

func (t *Tracker) resubscribe(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.state.Generation || t.pending == nil {
		return
	}
	t.pending = nil
	t.subscribeLocked()
}

// currentLocked reports whether a callback tagged gen belongs to the live watch.
func (t *Tracker) currentLocked(gen uint64) bool {
	return t.watching && gen == t.state.Generation
}

func (t *Tracker) stopLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.releaseWatchLocked()
	t.state.Generation++
}

func (t *Tracker) releaseWatchLocked() {
	if !t.watching {
		return
	}
	t.source.ClearWatch(t.watchID)
	t.watching = false
	t.watchID = 0
}

func (t *Tracker) notifyLocked() {
	for _, entry := range t.observers {
		entry.fn(t.state.Clone())
	}
}

func (t *Tracker) countReading(result string) {
	if t.metrics != nil {
		t.metrics.Readings.WithLabelValues(result).Inc()
	}
}

func (t *Tracker) countError(kind models.ErrorKind) {
	if t.metrics != nil {
		t.metrics.Errors.WithLabelValues(kind.String()).Inc()
	}
}

func (t *Tracker) countRetry() {
	if t.metrics != nil {
		t.metrics.Retries.Inc()
	}
}

func (t *Tracker) countFailed() {
	if t.metrics != nil {
		t.metrics.TrackersFailed.Inc()
	}
}
