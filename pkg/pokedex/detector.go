package pokedex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-pokedex/pkg/camera"
	"github.com/teslashibe/go-pokedex/pkg/inference"
)

// ErrEmptyFrame is returned when Classify is given a frame without data.
var ErrEmptyFrame = errors.New("pokedex: empty frame")

// Cycle describes one finished classification.
type Cycle struct {
	ID         string        `json:"id"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
	Result     *Result       `json:"result,omitempty"`
	Recognized bool          `json:"recognized"`
	Err        error         `json:"-"`
}

// Sighting is a recognized Pokémon.
type Sighting struct {
	Name        string    `json:"name"`
	Number      int       `json:"number"`
	Probability float64   `json:"probability"`
	At          time.Time `json:"at"`
}

// Observer is told about every finished cycle, successful or not.
type Observer interface {
	CycleFinished(c Cycle)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(c Cycle)

// CycleFinished calls f.
func (f ObserverFunc) CycleFinished(c Cycle) { f(c) }

// Stats is a snapshot of detector counters.
type Stats struct {
	Cycles       int64     `json:"cycles"`
	Dropped      int64     `json:"dropped"`
	Failed       int64     `json:"failed"`
	Sightings    int64     `json:"sightings"`
	InFlight     bool      `json:"in_flight"`
	LastSighting *Sighting `json:"last_sighting,omitempty"`
}

// Detector runs classification cycles on frames and notifies when a
// Pokémon is recognized.
//
// At most one frame-triggered cycle runs at a time. Frames arriving while a
// cycle is in flight are dropped.
type Detector struct {
	provider  inference.Provider
	notifier  Notifier
	observer  Observer
	threshold float64
	logger    *slog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup

	cycles    atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
	sightings atomic.Int64

	mu   sync.Mutex
	last *Sighting
}

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold overrides the recognition threshold.
func WithThreshold(t float64) Option {
	return func(d *Detector) { d.threshold = t }
}

// WithObserver registers an observer of finished cycles.
func WithObserver(o Observer) Option {
	return func(d *Detector) { d.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// NewDetector creates a detector.
func NewDetector(provider inference.Provider, notifier Notifier, opts ...Option) *Detector {
	d := &Detector{
		provider:  provider,
		notifier:  notifier,
		threshold: Threshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "pokedex.detector")
	return d
}

// Watch subscribes the detector to frames. Cycles started from it use ctx.
// The returned function unsubscribes.
func (d *Detector) Watch(ctx context.Context, frames *camera.Value) (stop func()) {
	return frames.Subscribe(func(f camera.Frame) {
		d.HandleFrame(ctx, f)
	})
}

// HandleFrame starts a cycle for frame in the background. Empty frames are
// ignored and frames arriving during a cycle are dropped. It reports whether
// a cycle was started and never blocks on the remote call.
func (d *Detector) HandleFrame(ctx context.Context, frame camera.Frame) bool {
	if frame.IsEmpty() {
		return false
	}
	if !d.busy.CompareAndSwap(false, true) {
		d.dropped.Add(1)
		d.logger.Debug("cycle in flight, frame dropped")
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.busy.Store(false)
		if _, err := d.Classify(ctx, frame); err != nil {
			d.logger.Warn("cycle failed", "error", err)
		}
	}()
	return true
}

// Wait blocks until in-flight cycles finish.
func (d *Detector) Wait() {
	d.wg.Wait()
}

// Classify runs one cycle synchronously: request, parse, decide, notify.
func (d *Detector) Classify(ctx context.Context, frame camera.Frame) (Result, error) {
	cycle := Cycle{ID: uuid.NewString(), Started: time.Now()}
	logger := d.logger.With("cycle", cycle.ID)
	d.cycles.Add(1)

	result, err := d.classify(ctx, logger, frame)
	if err == nil {
		cycle.Result = &result
		if result.Recognized(d.threshold) {
			cycle.Recognized = true
			err = d.announce(ctx, logger, result)
		}
	}

	cycle.Duration = time.Since(cycle.Started)
	cycle.Err = err
	if err != nil {
		d.failed.Add(1)
	}
	if d.observer != nil {
		d.observer.CycleFinished(cycle)
	}
	return result, err
}

func (d *Detector) classify(ctx context.Context, logger *slog.Logger, frame camera.Frame) (Result, error) {
	if frame.IsEmpty() {
		return Result{}, ErrEmptyFrame
	}

	text, err := d.provider.GenerateContent(ctx, BuildRequest(frame))
	if err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}
	logger.Debug("model answered", "text", text)

	result, err := ParseResult(text)
	if err != nil {
		return Result{}, err
	}
	logger.Info("frame classified",
		"name", result.Name,
		"number", result.Number,
		"probability", result.Probability,
	)
	return result, nil
}

func (d *Detector) announce(ctx context.Context, logger *slog.Logger, result Result) error {
	sighting := &Sighting{
		Name:        result.Name,
		Number:      result.Number,
		Probability: result.Probability,
		At:          time.Now(),
	}
	d.sightings.Add(1)
	d.mu.Lock()
	d.last = sighting
	d.mu.Unlock()

	logger.Info("pokemon recognized", "name", result.Name, "number", result.Number)
	if d.notifier == nil {
		return nil
	}
	if err := d.notifier.Notify(ctx, result.Name); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Stats returns detector counters.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	var last *Sighting
	if d.last != nil {
		s := *d.last
		last = &s
	}
	d.mu.Unlock()

	return Stats{
		Cycles:       d.cycles.Load(),
		Dropped:      d.dropped.Load(),
		Failed:       d.failed.Load(),
		Sightings:    d.sightings.Load(),
		InFlight:     d.busy.Load(),
		LastSighting: last,
	}
}
