package camera

import (
	"encoding/base64"
	"sync"
	"time"
)

// MimeJPEG is the MIME type of every Frame payload.
const MimeJPEG = "image/jpeg"

// Frame is one encoded still image taken from the live stream.
type Frame struct {
	// Data is the base64 JPEG payload without a data-URL header.
	Data string

	// MimeType is always image/jpeg.
	MimeType string

	// CapturedAt is when the snapshot was taken.
	CapturedAt time.Time
}

// NewFrame wraps an already-encoded base64 JPEG payload.
func NewFrame(data string) Frame {
	return Frame{Data: data, MimeType: MimeJPEG, CapturedAt: time.Now()}
}

// IsEmpty reports whether the frame carries no image data.
func (f Frame) IsEmpty() bool {
	return f.Data == ""
}

// JPEG decodes the payload back to JPEG bytes.
func (f Frame) JPEG() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// Value holds the latest Frame and notifies subscribers on every publish.
// The zero value is ready to use and holds an empty Frame.
type Value struct {
	mu      sync.RWMutex
	current Frame
	subs    []subscription
	nextID  uint64
}

type subscription struct {
	id uint64
	fn func(Frame)
}

// Current returns the latest published Frame.
func (v *Value) Current() Frame {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Subscribe registers fn to be called once per Publish, in publish order.
// Nothing is delivered for frames published before subscribing.
// The returned function removes the subscription.
func (v *Value) Subscribe(fn func(Frame)) (cancel func()) {
	v.mu.Lock()
	v.nextID++
	id := v.nextID
	v.subs = append(v.subs, subscription{id: id, fn: fn})
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, s := range v.subs {
			if s.id == id {
				v.subs = append(v.subs[:i], v.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish replaces the current Frame and calls every subscriber.
// Subscribers run on the publishing goroutine and must not block.
func (v *Value) Publish(f Frame) {
	v.mu.Lock()
	v.current = f
	subs := make([]subscription, len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()

	for _, s := range subs {
		s.fn(f)
	}
}
