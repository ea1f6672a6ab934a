package location

import (
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/compass/internal/metrics"
	"github.com/UnknownOlympus/compass/internal/models"
)

const (
	// DefaultQueueSize is the per-watch event buffer used when none is configured.
	DefaultQueueSize = 64
	// CacheRetention bounds how long a device without watches keeps its last fix.
	CacheRetention = 5 * time.Minute
)

type event struct {
	reading *models.Reading
	err     *PositionError
}

type watch struct {
	id        WatchID
	device    string
	opts      WatchOptions
	onReading ReadingFunc
	onError   ErrorFunc
	events    chan event
	done      chan struct{}
	timer     *time.Timer
}

type device struct {
	last       *models.Reading
	receivedAt time.Time
	watches    map[WatchID]*watch
}

// Hub is a push-fed location service. Devices publish fixes and errors by ID and each
// device is exposed as its own Source through Device.
type Hub struct {
	mu        sync.Mutex
	log       *slog.Logger
	queueSize int
	now       func() time.Time
	metrics   *metrics.Metrics
	closed    bool
	nextID    WatchID
	devices   map[string]*device
	lastSweep time.Time
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithHubMetrics reports the number of open watches on m.OpenWatches.
func WithHubMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates an empty hub. A non-positive queueSize falls back to DefaultQueueSize.
func NewHub(log *slog.Logger, queueSize int, opts ...HubOption) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	h := &Hub{
		log:       log,
		queueSize: queueSize,
		now:       time.Now,
		devices:   make(map[string]*device),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.lastSweep = h.now()
	return h
}

// Device returns the Source view of a single device.
func (h *Hub) Device(id string) Source {
	return &deviceSource{hub: h, id: id}
}

// Publish records a fix for the device and fans it out to every open watch.
func (h *Hub) Publish(deviceID string, reading models.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.sweepLocked()

	dev := h.device(deviceID)
	dev.last = &reading
	dev.receivedAt = h.now()

	for _, w := range dev.watches {
		if w.timer != nil {
			w.timer.Reset(w.opts.Timeout)
		}
		h.enqueue(w, event{reading: &reading})
	}
}

// PublishError fans a coded failure out to every open watch of the device.
func (h *Hub) PublishError(deviceID string, perr *PositionError) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	dev, ok := h.devices[deviceID]
	if !ok {
		return
	}
	for _, w := range dev.watches {
		h.enqueue(w, event{err: perr})
	}
}

// Close cancels every watch. Devices report unavailable afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, dev := range h.devices {
		for _, w := range dev.watches {
			h.stopWatch(w)
		}
	}
	h.devices = make(map[string]*device)
}

func (h *Hub) device(id string) *device {
	dev, ok := h.devices[id]
	if !ok {
		dev = &device{watches: make(map[WatchID]*watch)}
		h.devices[id] = dev
	}
	return dev
}

// sweepLocked evicts devices that have no watches and no fix younger than CacheRetention.
// It runs at most once per CacheRetention.
func (h *Hub) sweepLocked() {
	now := h.now()
	if now.Sub(h.lastSweep) < CacheRetention {
		return
	}
	h.lastSweep = now

	for id, dev := range h.devices {
		if len(dev.watches) == 0 && now.Sub(dev.receivedAt) >= CacheRetention {
			delete(h.devices, id)
		}
	}
}

func (h *Hub) enqueue(w *watch, ev event) {
	select {
	case w.events <- ev:
	default:
		h.log.Warn("Watch queue full, dropping location event", "device", w.device, "watch", w.id)
	}
}

func (h *Hub) watch(deviceID string, opts WatchOptions, onReading ReadingFunc, onError ErrorFunc) (WatchID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrUnavailable
	}

	h.nextID++
	w := &watch{
		id:        h.nextID,
		device:    deviceID,
		opts:      opts,
		onReading: onReading,
		onError:   onError,
		events:    make(chan event, h.queueSize),
		done:      make(chan struct{}),
	}

	dev := h.device(deviceID)
	dev.watches[w.id] = w

	if opts.MaximumAge > 0 && dev.last != nil && h.now().Sub(dev.receivedAt) <= opts.MaximumAge {
		cached := *dev.last
		h.enqueue(w, event{reading: &cached})
	}

	if opts.Timeout > 0 {
		w.timer = time.AfterFunc(opts.Timeout, func() {
			h.expire(w)
		})
	}

	go w.run()
	if h.metrics != nil {
		h.metrics.OpenWatches.Inc()
	}

	h.log.Debug("Watch opened", "device", deviceID, "watch", w.id, "timeout", opts.Timeout)

	return w.id, nil
}

func (h *Hub) expire(w *watch) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	h.enqueue(w, event{err: &PositionError{Code: CodeTimeout, Message: "no fix within " + w.opts.Timeout.String()}})
	w.timer.Reset(w.opts.Timeout)
}

func (h *Hub) clearWatch(deviceID string, id WatchID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dev, ok := h.devices[deviceID]
	if !ok {
		return
	}
	if w, found := dev.watches[id]; found {
		h.stopWatch(w)
		delete(dev.watches, id)
		h.log.Debug("Watch cleared", "device", deviceID, "watch", id)
	}
	if len(dev.watches) == 0 && dev.last == nil {
		delete(h.devices, deviceID)
	}
}

func (h *Hub) stopWatch(w *watch) {
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	if h.metrics != nil {
		h.metrics.OpenWatches.Dec()
	}
}

func (w *watch) run() {
	for {
		select {
		case <-w.done:
			return
		case ev := <-w.events:
			select {
			case <-w.done:
				return
			default:
			}
			if ev.reading != nil {
				w.onReading(*ev.reading)
			} else {
				w.onError(ev.err)
			}
		}
	}
}

type deviceSource struct {
	hub *Hub
	id  string
}

func (d *deviceSource) Available() bool {
	d.hub.mu.Lock()
	defer d.hub.mu.Unlock()
	return !d.hub.closed
}

func (d *deviceSource) Watch(opts WatchOptions, onReading ReadingFunc, onError ErrorFunc) (WatchID, error) {
	return d.hub.watch(d.id, opts, onReading, onError)
}

func (d *deviceSource) ClearWatch(id WatchID) {
	d.hub.clearWatch(d.id, id)
}
