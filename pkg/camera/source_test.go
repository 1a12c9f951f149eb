package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"
)

// fakeDevice returns a solid image, or readErr when set.
type fakeDevice struct {
	mu      sync.Mutex
	img     image.Image
	readErr error
	reads   int
	closed  bool
}

func newFakeDevice(w, h int) *fakeDevice {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 250, G: 210, B: 40, A: 255})
		}
	}
	return &fakeDevice{img: img}
}

func (d *fakeDevice) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.readErr != nil {
		return nil, d.readErr
	}
	return d.img, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readErr = err
}

// opener returns an OpenFunc serving devices by name and recording attempts.
func opener(devices map[string]Device, attempts *[]string) OpenFunc {
	return func(name string, width, height int) (Device, error) {
		*attempts = append(*attempts, name)
		if d, ok := devices[name]; ok {
			return d, nil
		}
		return nil, errors.New("no such device")
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.IntervalMs = 60_000
	cfg.ViewportWidth = 64
	cfg.ViewportHeight = 48
	return cfg
}

func TestSourceStartPrefersRear(t *testing.T) {
	rear := newFakeDevice(32, 32)
	front := newFakeDevice(32, 32)
	var attempts []string

	src := NewSource(NewManager(testConfig()), opener(map[string]Device{"0": rear, "1": front}, &attempts), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	if len(attempts) != 1 || attempts[0] != "0" {
		t.Errorf("Expected only rear device to be opened, got %v", attempts)
	}
	if src.Stats().Device != "0" {
		t.Errorf("Expected device 0, got %s", src.Stats().Device)
	}
}

func TestSourceStartFallsBackToFront(t *testing.T) {
	front := newFakeDevice(32, 32)
	var attempts []string

	src := NewSource(NewManager(testConfig()), opener(map[string]Device{"1": front}, &attempts), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	if len(attempts) != 2 || attempts[1] != "1" {
		t.Errorf("Expected rear then front, got %v", attempts)
	}
	if src.Stats().Device != "1" {
		t.Errorf("Expected front device, got %s", src.Stats().Device)
	}
}

func TestSourceStartNoCamera(t *testing.T) {
	var attempts []string
	src := NewSource(NewManager(testConfig()), opener(nil, &attempts), nil)

	err := src.Start(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}

	// No frames, no panic
	if err := src.Capture(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}
	if !src.Frames().Current().IsEmpty() {
		t.Error("Expected no frame to be published")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSourceStartNoFallback(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackToFront = false
	var attempts []string

	src := NewSource(NewManager(cfg), opener(map[string]Device{"1": newFakeDevice(8, 8)}, &attempts), nil)
	if err := src.Start(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if len(attempts) != 1 {
		t.Errorf("Expected a single attempt, got %v", attempts)
	}
}

func TestSourceStartTwice(t *testing.T) {
	var attempts []string
	src := NewSource(NewManager(testConfig()), opener(map[string]Device{"0": newFakeDevice(8, 8)}, &attempts), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	if err := src.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSourceCapturePublishes(t *testing.T) {
	var attempts []string
	src := NewSource(NewManager(testConfig()), opener(map[string]Device{"0": newFakeDevice(128, 96)}, &attempts), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	var got []Frame
	src.Frames().Subscribe(func(f Frame) { got = append(got, f) })

	if err := src.Capture(); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if err := src.Capture(); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	// Identical content still emits every time
	if len(got) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(got))
	}
	if got[0].IsEmpty() {
		t.Fatal("Expected frame data")
	}
	if got[0].MimeType != MimeJPEG {
		t.Errorf("Expected %s, got %s", MimeJPEG, got[0].MimeType)
	}

	img, err := DecodeImage(got[0].Data)
	if err != nil {
		t.Fatalf("Frame is not a decodable JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("Expected 64x48 surface, got %dx%d", b.Dx(), b.Dy())
	}

	if src.Stats().Captures != 2 {
		t.Errorf("Expected 2 captures, got %d", src.Stats().Captures)
	}
}

func TestSourceCaptureFailurePublishesNothing(t *testing.T) {
	dev := newFakeDevice(16, 16)
	dev.setErr(errors.New("usb unplugged"))
	var attempts []string

	src := NewSource(NewManager(testConfig()), opener(map[string]Device{"0": dev}, &attempts), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	published := 0
	src.Frames().Subscribe(func(Frame) { published++ })

	if err := src.Capture(); err == nil {
		t.Fatal("Expected capture error")
	}
	if published != 0 {
		t.Errorf("Expected no publish on failure, got %d", published)
	}
	if src.Stats().Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", src.Stats().Failures)
	}

	// Recovers on the next tick
	dev.setErr(nil)
	if err := src.Capture(); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if published != 1 {
		t.Errorf("Expected 1 publish after recovery, got %d", published)
	}
}

func TestSourceZeroViewport(t *testing.T) {
	cfg := testConfig()
	cfg.ViewportWidth = 0
	var attempts []string

	src := NewSource(NewManager(cfg), opener(map[string]Device{"0": newFakeDevice(16, 16)}, &attempts), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	published := 0
	src.Frames().Subscribe(func(Frame) { published++ })

	if err := src.Capture(); err != nil {
		t.Fatalf("Zero viewport should not error: %v", err)
	}
	if published != 1 {
		t.Fatalf("Expected 1 publish, got %d", published)
	}
	if !src.Frames().Current().IsEmpty() {
		t.Error("Expected empty frame for zero-area surface")
	}
}

func TestSourceLoopTicks(t *testing.T) {
	cfg := testConfig()
	cfg.IntervalMs = MinIntervalMs
	dev := newFakeDevice(16, 16)
	var attempts []string

	src := NewSource(NewManager(cfg), opener(map[string]Device{"0": dev}, &attempts), nil)

	frames := make(chan Frame, 10)
	src.Frames().Subscribe(func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	})

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a tick")
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	dev.mu.Lock()
	closed := dev.closed
	dev.mu.Unlock()
	if !closed {
		t.Error("Expected device to be closed")
	}
	if src.Stats().Running {
		t.Error("Expected source to be stopped")
	}
}

func TestSourceIntervalChange(t *testing.T) {
	var attempts []string
	manager := NewManager(testConfig())
	src := NewSource(manager, opener(map[string]Device{"0": newFakeDevice(8, 8)}, &attempts), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	if err := manager.UpdateConfig(map[string]interface{}{"interval_ms": float64(2000)}); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if got := manager.GetConfig().Interval(); got != 2*time.Second {
		t.Errorf("Expected 2s, got %v", got)
	}
}
