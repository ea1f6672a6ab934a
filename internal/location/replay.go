package location

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/UnknownOlympus/compass/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrEmptyScript is returned when a replay script has no steps.
var ErrEmptyScript = errors.New("replay script has no steps")

// Step is one scripted event: either a fix or a coded error, emitted after Delay.
type Step struct {
	Delay   time.Duration   `yaml:"delay"`
	Reading *models.Reading `yaml:"reading,omitempty"`
	Error   *PositionError  `yaml:"error,omitempty"`
}

// Script is the on-disk replay format.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// Replay is a Source that plays a recorded script. The cursor is shared between watches, so a
// re-subscription continues where the previous watch stopped. Timeouts are not enforced.
type Replay struct {
	mu      sync.Mutex
	log     *slog.Logger
	steps   []Step
	cursor  int
	nextID  WatchID
	watches map[WatchID]chan struct{}
	now     func() time.Time
}

// LoadScript reads a YAML replay script from path.
func LoadScript(path string) (*Script, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay script: %w", err)
	}
	defer file.Close()

	return DecodeScript(file)
}

// DecodeScript parses a YAML replay script.
func DecodeScript(r io.Reader) (*Script, error) {
	var script Script
	if err := yaml.NewDecoder(r).Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to decode replay script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, ErrEmptyScript
	}
	for idx, step := range script.Steps {
		if (step.Reading == nil) == (step.Error == nil) {
			return nil, fmt.Errorf("step %d: exactly one of reading or error is required", idx)
		}
	}
	return &script, nil
}

// NewReplay creates a Source playing script.
func NewReplay(script *Script, log *slog.Logger) *Replay {
	return &Replay{
		log:     log,
		steps:   script.Steps,
		watches: make(map[WatchID]chan struct{}),
		now:     time.Now,
	}
}

func (r *Replay) Available() bool { return true }

// Remaining returns the number of steps not yet played.
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps) - r.cursor
}

func (r *Replay) Watch(_ WatchOptions, onReading ReadingFunc, onError ErrorFunc) (WatchID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	stop := make(chan struct{})
	r.watches[id] = stop

	go r.play(stop, onReading, onError)

	return id, nil
}

func (r *Replay) ClearWatch(id WatchID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stop, ok := r.watches[id]; ok {
		close(stop)
		delete(r.watches, id)
	}
}

func (r *Replay) play(stop <-chan struct{}, onReading ReadingFunc, onError ErrorFunc) {
	for {
		step, ok := r.peek()
		if !ok {
			r.log.Debug("Replay script exhausted")
			return
		}

		timer := time.NewTimer(step.Delay)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		if !r.advance(stop) {
			return
		}

		if step.Reading != nil {
			reading := *step.Reading
			if reading.Timestamp.IsZero() {
				reading.Timestamp = r.now()
			}
			onReading(reading)
		} else {
			onError(step.Error)
		}
	}
}

func (r *Replay) peek() (Step, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor >= len(r.steps) {
		return Step{}, false
	}
	return r.steps[r.cursor], true
}

// advance consumes the current step unless the watch was cleared meanwhile.
func (r *Replay) advance(stop <-chan struct{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-stop:
		return false
	default:
	}
	r.cursor++
	return true
}
