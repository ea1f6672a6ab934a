package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/compass/internal/geocoding"
	"github.com/UnknownOlympus/compass/internal/location"
	"github.com/UnknownOlympus/compass/internal/metrics"
	"github.com/UnknownOlympus/compass/internal/models"
	"github.com/UnknownOlympus/compass/internal/repository"
	"github.com/UnknownOlympus/compass/internal/settings"
	"github.com/UnknownOlympus/compass/internal/tracker"
	"github.com/google/uuid"
)

// TimeoutSettingPrefix prefixes the per-device acquisition timeout override key.
const TimeoutSettingPrefix = "tracker.timeout."

var (
	ErrSessionNotFound = errors.New("tracking session not found")
	ErrInvalidDevice   = errors.New("device id must not be empty")
	ErrServiceClosed   = errors.New("tracking service is shut down")
)

// SessionInfo describes a tracking session.
type SessionInfo struct {
	ID       uuid.UUID           `json:"session_id"`
	DeviceID string              `json:"device_id"`
	State    models.TrackerState `json:"state"`
}

type session struct {
	id          uuid.UUID
	deviceID    string
	tracker     *tracker.Tracker
	unsubscribe func()

	// Snapshots handed from the tracker observer to the persistence worker.
	// push never blocks, so the tracker lock is never held across I/O.
	mu      sync.Mutex
	pending []models.TrackerState
	done    bool
	wake    chan struct{}
}

func (s *session) push(state models.TrackerState) {
	s.mu.Lock()
	s.pending = append(s.pending, state)
	s.mu.Unlock()
	s.signal()
}

// drain takes every queued snapshot and reports whether the session has finished.
func (s *session) drain() ([]models.TrackerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.pending
	s.pending = nil
	return batch, s.done
}

func (s *session) finish() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.signal()
}

func (s *session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// TrackingService runs one tracker per session against the device hub
// and persists every state transition.
type TrackingService struct {
	log          *slog.Logger         // Logger for logging service activities
	hub          *location.Hub        // Source of device fixes
	repo         repository.Interface // Interface for data repository access
	settings     settings.Store       // Per-device overrides
	geocoder     geocoding.Provider   // Reverse geocoder for accepted positions
	providerName string               // Name of the provider for metrics labeling
	metrics      *metrics.Metrics     // Metrics for tracking service performance
	trackerCfg   tracker.Config       // Defaults for new trackers

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
	closed   bool
	wg       sync.WaitGroup
}

// NewTrackingService creates a new instance of TrackingService.
func NewTrackingService(
	log *slog.Logger,
	hub *location.Hub,
	repo repository.Interface,
	store settings.Store,
	geocoder geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
	trackerCfg tracker.Config,
) *TrackingService {
	return &TrackingService{
		log:          log,
		hub:          hub,
		repo:         repo,
		settings:     store,
		geocoder:     geocoder,
		providerName: providerName,
		metrics:      metrics,
		trackerCfg:   trackerCfg,
		sessions:     make(map[uuid.UUID]*session),
	}
}

// Run blocks until ctx is cancelled, then stops every session and waits for pending writes.
func (ts *TrackingService) Run(ctx context.Context) {
	ts.log.InfoContext(ctx, "Tracking service started...")
	<-ctx.Done()
	ts.Shutdown()
	ts.log.InfoContext(ctx, "Tracking service stopped.")
}

// Shutdown stops all sessions and waits for their persistence workers.
// StartSession fails with ErrServiceClosed afterwards.
func (ts *TrackingService) Shutdown() {
	ts.mu.Lock()
	ts.closed = true
	sessions := ts.sessions
	ts.sessions = make(map[uuid.UUID]*session)
	ts.mu.Unlock()

	for _, sess := range sessions {
		ts.close(sess)
	}
	ts.wg.Wait()
}

// StartSession begins tracking deviceID and returns the new session.
func (ts *TrackingService) StartSession(ctx context.Context, deviceID string) (SessionInfo, error) {
	if deviceID == "" {
		return SessionInfo{}, ErrInvalidDevice
	}

	sess := &session{
		id:       uuid.New(),
		deviceID: deviceID,
		wake:     make(chan struct{}, 1),
	}
	sess.tracker = tracker.New(
		ts.hub.Device(deviceID),
		ts.trackerConfig(ctx, deviceID),
		tracker.WithLogger(ts.log.With("session", sess.id.String(), "device", deviceID)),
		tracker.WithMetrics(ts.metrics),
	)
	sess.unsubscribe = sess.tracker.Subscribe(sess.push)

	ts.mu.Lock()
	if ts.closed {
		ts.mu.Unlock()
		sess.unsubscribe()
		return SessionInfo{}, ErrServiceClosed
	}
	ts.wg.Add(1)
	ts.mu.Unlock()

	go ts.persist(context.WithoutCancel(ctx), sess)

	sess.tracker.Start()
	ts.metrics.ActiveSessions.Inc()

	ts.mu.Lock()
	if ts.closed {
		ts.mu.Unlock()
		ts.close(sess)
		return SessionInfo{}, ErrServiceClosed
	}
	ts.sessions[sess.id] = sess
	ts.mu.Unlock()

	ts.log.InfoContext(ctx, "Tracking session started", "session", sess.id, "device", deviceID)

	return SessionInfo{ID: sess.id, DeviceID: deviceID, State: sess.tracker.State()}, nil
}

// StopSession stops tracking and forgets the session.
func (ts *TrackingService) StopSession(ctx context.Context, id uuid.UUID) error {
	ts.mu.Lock()
	sess, ok := ts.sessions[id]
	delete(ts.sessions, id)
	ts.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	ts.close(sess)
	ts.log.InfoContext(ctx, "Tracking session stopped", "session", id, "device", sess.deviceID)

	return nil
}

// RestartSession re-subscribes the session's tracker with the attempt counter reset.
func (ts *TrackingService) RestartSession(ctx context.Context, id uuid.UUID) (SessionInfo, error) {
	sess, err := ts.lookup(id)
	if err != nil {
		return SessionInfo{}, err
	}

	sess.tracker.Restart()
	ts.log.InfoContext(ctx, "Tracking session restarted", "session", id)

	return SessionInfo{ID: id, DeviceID: sess.deviceID, State: sess.tracker.State()}, nil
}

// Session returns the current snapshot of a session.
func (ts *TrackingService) Session(id uuid.UUID) (SessionInfo, error) {
	sess, err := ts.lookup(id)
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{ID: id, DeviceID: sess.deviceID, State: sess.tracker.State()}, nil
}

// Ingest forwards a raw fix from a device to its watchers.
func (ts *TrackingService) Ingest(deviceID string, reading models.Reading) error {
	if deviceID == "" {
		return ErrInvalidDevice
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}
	ts.hub.Publish(deviceID, reading)
	return nil
}

// IngestError forwards a coded platform failure from a device to its watchers.
func (ts *TrackingService) IngestError(deviceID string, code int, message string) error {
	if deviceID == "" {
		return ErrInvalidDevice
	}
	ts.hub.PublishError(deviceID, &location.PositionError{Code: code, Message: message})
	return nil
}

// LastPosition returns the most recent persisted position of a device.
func (ts *TrackingService) LastPosition(ctx context.Context, deviceID string) (*models.Position, error) {
	pos, err := ts.repo.LastPosition(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last position: %w", err)
	}
	return pos, nil
}

func (ts *TrackingService) lookup(id uuid.UUID) (*session, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	sess, ok := ts.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (ts *TrackingService) close(sess *session) {
	sess.tracker.Stop()
	sess.unsubscribe()
	sess.finish()
	ts.metrics.ActiveSessions.Dec()
}

// trackerConfig applies the per-device timeout override, if any, to the defaults.
func (ts *TrackingService) trackerConfig(ctx context.Context, deviceID string) tracker.Config {
	cfg := ts.trackerCfg

	raw, err := ts.settings.Get(ctx, TimeoutSettingPrefix+deviceID)
	switch {
	case errors.Is(err, settings.ErrNotFound):
		return cfg
	case err != nil:
		ts.log.WarnContext(ctx, "Failed to read timeout override, using default", "device", deviceID, "error", err)
		return cfg
	}

	timeout, err := time.ParseDuration(raw)
	if err != nil || timeout <= 0 {
		ts.log.WarnContext(ctx, "Ignoring invalid timeout override", "device", deviceID, "value", raw)
		return cfg
	}

	cfg.Watch.Timeout = timeout
	return cfg
}

// persist drains the session queue until the session finishes. tracker_states holds one
// row per session, so only the newest snapshot of each batch is written. Every new position
// is stored, but only the newest one of a batch is reverse geocoded.
func (ts *TrackingService) persist(ctx context.Context, sess *session) {
	defer ts.wg.Done()

	var saved *models.Position
	for {
		batch, done := sess.drain()
		if len(batch) > 0 {
			saved = ts.persistBatch(ctx, sess, batch, saved)
		}
		if done {
			return
		}
		<-sess.wake
	}
}

func (ts *TrackingService) persistBatch(
	ctx context.Context,
	sess *session,
	batch []models.TrackerState,
	saved *models.Position,
) *models.Position {
	var fresh []models.Position
	for _, state := range batch {
		if state.Current == nil || samePosition(saved, state.Current) {
			continue
		}
		saved = state.Current
		fresh = append(fresh, *state.Current)
	}

	for idx, pos := range fresh {
		address := ""
		if idx == len(fresh)-1 {
			address = ts.reverse(ctx, pos.Coordinates)
		}
		if err := ts.repo.SavePosition(ctx, sess.id, sess.deviceID, pos, address); err != nil {
			ts.log.ErrorContext(ctx, "Failed to persist position", "session", sess.id, "error", err)
			ts.metrics.PersistFailures.WithLabelValues("positions").Inc()
		}
	}

	if err := ts.repo.SaveState(ctx, sess.id, sess.deviceID, batch[len(batch)-1]); err != nil {
		ts.log.ErrorContext(ctx, "Failed to persist tracker state", "session", sess.id, "error", err)
		ts.metrics.PersistFailures.WithLabelValues("tracker_states").Inc()
	}

	return saved
}

// reverse labels coords with an address; failures leave the position unlabelled.
func (ts *TrackingService) reverse(ctx context.Context, coords models.Coordinates) string {
	startTime := time.Now()
	address, err := ts.geocoder.Reverse(ctx, coords)
	ts.metrics.GeocodeSeconds.WithLabelValues(ts.providerName).Observe(time.Since(startTime).Seconds())

	if err != nil {
		ts.log.WarnContext(ctx, "Failed to reverse geocode position", "lat", coords.Latitude, "lng", coords.Longitude,
			"error", err)
		return ""
	}
	return address
}

func samePosition(a, b *models.Position) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Coordinates == b.Coordinates && a.ObservedAt.Equal(b.ObservedAt)
}
