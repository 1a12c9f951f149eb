// Package opencv opens cameras through OpenCV's VideoCapture.
package opencv

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pokedex/pkg/camera"
)

var (
	errRead  = errors.New("opencv: read failed")
	errEmpty = errors.New("opencv: empty frame")
)

// Device is a VideoCapture-backed camera.
type Device struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	mu      sync.Mutex // Protects mat
}

// Open opens a device index ("0"), a path, or a stream URL.
// It satisfies camera.OpenFunc.
func Open(device string, width, height int) (camera.Device, error) {
	var src interface{} = device
	if id, err := strconv.Atoi(device); err == nil {
		src = id
	}

	vc, err := gocv.OpenVideoCapture(src)
	if err != nil {
		return nil, fmt.Errorf("opencv: open %q: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("opencv: open %q: device not opened", device)
	}

	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	return &Device{
		capture: vc,
		mat:     gocv.NewMat(),
	}, nil
}

// Read grabs the stream's current frame.
func (d *Device) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ok := d.capture.Read(&d.mat); !ok {
		return nil, errRead
	}
	if d.mat.Empty() {
		return nil, errEmpty
	}

	return d.mat.ToImage()
}

// Close releases the capture and its buffer.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mat.Close()
	return d.capture.Close()
}

var _ camera.OpenFunc = Open
