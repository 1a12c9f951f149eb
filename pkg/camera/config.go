// Package camera captures still frames from a live camera on a fixed interval.
//
// A Source owns the device (the live stream) and a viewport-sized draw
// surface. On every tick it snapshots the stream onto the surface, encodes it
// as JPEG, and publishes the base64 payload as the current Frame.
package camera

import (
	"strings"
	"time"
)

// Config holds all capture configuration parameters.
// These can be modified via the dashboard API at runtime.
type Config struct {
	// === Stream ===
	Width   int `json:"width" yaml:"width"`     // Requested stream width in pixels
	Height  int `json:"height" yaml:"height"`   // Requested stream height in pixels
	Quality int `json:"quality" yaml:"quality"` // JPEG quality 1-100

	// IntervalMs is the time between captures in milliseconds.
	IntervalMs int `json:"interval_ms" yaml:"interval_ms"`

	// === Draw surface ===
	// The snapshot is scaled onto a surface of this size before encoding.
	// A zero dimension yields an empty frame.
	ViewportWidth  int `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int `json:"viewport_height" yaml:"viewport_height"`

	// === Devices ===
	// Device index ("0"), path ("/dev/video2") or stream URL.
	RearDevice  string `json:"rear_device" yaml:"rear_device"`
	FrontDevice string `json:"front_device" yaml:"front_device"`

	// FallbackToFront opens FrontDevice when RearDevice is unavailable.
	FallbackToFront bool `json:"fallback_to_front" yaml:"fallback_to_front"`
}

// Limits for validation.
const (
	MaxWidth       = 4096
	MaxHeight      = 2160
	MinIntervalMs  = 100
	MaxIntervalMs  = 10 * 60 * 1000
	DefaultQuality = 92
)

// DefaultConfig returns the standard capture configuration.
// One frame every 5 seconds, 640x480 surface.
func DefaultConfig() Config {
	return Config{
		Width:      1280,
		Height:     720,
		Quality:    DefaultQuality,
		IntervalMs: 5000,

		ViewportWidth:  640,
		ViewportHeight: 480,

		RearDevice:      "0",
		FrontDevice:     "1",
		FallbackToFront: true,
	}
}

// Interval returns the capture interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.IntervalMs < MinIntervalMs || c.IntervalMs > MaxIntervalMs {
		errors = append(errors, "interval_ms must be between 100 and 600000")
	}

	// Zero is allowed and produces an empty frame
	if c.ViewportWidth < 0 || c.ViewportWidth > MaxWidth {
		errors = append(errors, "viewport_width must be between 0 and 4096")
	}
	if c.ViewportHeight < 0 || c.ViewportHeight > MaxHeight {
		errors = append(errors, "viewport_height must be between 0 and 2160")
	}

	if strings.TrimSpace(c.RearDevice) == "" {
		errors = append(errors, "rear_device is required")
	}
	if c.FallbackToFront && strings.TrimSpace(c.FrontDevice) == "" {
		errors = append(errors, "front_device is required when fallback_to_front is set")
	}

	return errors
}
