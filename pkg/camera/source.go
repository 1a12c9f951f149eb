package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Source periodically snapshots a camera and publishes the result as the
// current Frame.
type Source struct {
	manager *Manager
	open    OpenFunc
	frames  *Value
	logger  *slog.Logger

	mu         sync.Mutex
	device     Device
	deviceName string
	cancel     context.CancelFunc
	done       chan struct{}
	reset      chan time.Duration

	// Stats
	captures    atomic.Int64
	failures    atomic.Int64
	lastCapture atomic.Int64 // unix nanos
}

// Stats is a snapshot of capture counters.
type Stats struct {
	Running     bool      `json:"running"`
	Device      string    `json:"device"`
	Captures    int64     `json:"captures"`
	Failures    int64     `json:"failures"`
	LastCapture time.Time `json:"last_capture"`
}

// NewSource creates a capture source. Nothing is opened until Start.
func NewSource(manager *Manager, open OpenFunc, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		manager: manager,
		open:    open,
		frames:  &Value{},
		logger:  logger.With("component", "camera.source"),
		reset:   make(chan time.Duration, 1),
	}
}

// Frames returns the observable current-Frame value.
func (s *Source) Frames() *Value {
	return s.frames
}

// Start opens the camera and begins periodic capture.
//
// The rear device is tried first; the front device is tried when fallback is
// enabled. If neither opens, the failure is logged and ErrUnavailable is
// returned. The caller keeps running without frames.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	cfg := s.manager.GetConfig()

	device, name, err := s.openPreferred(cfg)
	if err != nil {
		s.logger.Error("camera access failed", "error", err)
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.device = device
	s.deviceName = name
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.manager.SetOnConfigChange(func(cfg Config) error {
		// Latest interval wins if the loop hasn't picked up the last one
		select {
		case <-s.reset:
		default:
		}
		select {
		case s.reset <- cfg.Interval():
		default:
		}
		return nil
	})

	s.logger.Info("camera started",
		"device", name,
		"interval", cfg.Interval(),
		"viewport", fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight),
	)

	go s.loop(loopCtx, cfg.Interval())
	return nil
}

// openPreferred opens the rear device, falling back to the front one.
func (s *Source) openPreferred(cfg Config) (Device, string, error) {
	device, err := s.open(cfg.RearDevice, cfg.Width, cfg.Height)
	if err == nil {
		return device, cfg.RearDevice, nil
	}

	if !cfg.FallbackToFront || cfg.FrontDevice == "" {
		return nil, "", fmt.Errorf("%w: rear %q: %v", ErrUnavailable, cfg.RearDevice, err)
	}

	s.logger.Warn("rear camera unavailable, trying front",
		"rear", cfg.RearDevice,
		"front", cfg.FrontDevice,
		"error", err,
	)

	device, frontErr := s.open(cfg.FrontDevice, cfg.Width, cfg.Height)
	if frontErr != nil {
		return nil, "", fmt.Errorf("%w: rear %q: %v; front %q: %v",
			ErrUnavailable, cfg.RearDevice, err, cfg.FrontDevice, frontErr)
	}
	return device, cfg.FrontDevice, nil
}

// loop captures on every tick until ctx is cancelled.
// A failed capture is logged and the loop carries on.
func (s *Source) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		s.closeDevice()
		close(s.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.reset:
			ticker.Reset(d)
			s.logger.Info("capture interval changed", "interval", d)
		case <-ticker.C:
			if err := s.Capture(); err != nil {
				s.logger.Warn("capture failed", "error", err)
			}
		}
	}
}

// Capture takes one snapshot and publishes it.
// A read failure publishes nothing.
func (s *Source) Capture() error {
	s.mu.Lock()
	device := s.device
	s.mu.Unlock()
	if device == nil {
		return ErrNotStarted
	}

	cfg := s.manager.GetConfig()

	img, err := device.Read()
	if err != nil {
		s.failures.Add(1)
		return fmt.Errorf("camera: read frame: %w", err)
	}

	frame, err := EncodeFrame(img, cfg.ViewportWidth, cfg.ViewportHeight, cfg.Quality)
	if err != nil {
		s.failures.Add(1)
		return err
	}

	s.captures.Add(1)
	s.lastCapture.Store(frame.CapturedAt.UnixNano())

	s.logger.Debug("frame captured", "bytes", len(frame.Data))
	s.frames.Publish(frame)
	return nil
}

// Stats returns capture counters.
func (s *Source) Stats() Stats {
	s.mu.Lock()
	running := s.device != nil
	name := s.deviceName
	s.mu.Unlock()

	stats := Stats{
		Running:  running,
		Device:   name,
		Captures: s.captures.Load(),
		Failures: s.failures.Load(),
	}
	if ns := s.lastCapture.Load(); ns > 0 {
		stats.LastCapture = time.Unix(0, ns)
	}
	return stats
}

// Close stops the capture loop and releases the device.
func (s *Source) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (s *Source) closeDevice() {
	s.mu.Lock()
	device := s.device
	s.device = nil
	s.mu.Unlock()

	if device == nil {
		return
	}
	if err := device.Close(); err != nil {
		s.logger.Warn("camera close failed", "error", err)
	}
}
