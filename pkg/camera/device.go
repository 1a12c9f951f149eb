package camera

import (
	"errors"
	"image"
)

// Device is a live video stream that can be sampled.
type Device interface {
	// Read returns the stream's current picture.
	Read() (image.Image, error)

	// Close releases the device.
	Close() error
}

// OpenFunc opens a device by index, path or URL at the requested resolution.
type OpenFunc func(device string, width, height int) (Device, error)

// Sentinel errors for capture conditions.
var (
	// ErrUnavailable is returned when no camera could be opened.
	ErrUnavailable = errors.New("camera: no camera available")

	// ErrNotStarted is returned when capturing before Start.
	ErrNotStarted = errors.New("camera: source not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("camera: source already started")
)
