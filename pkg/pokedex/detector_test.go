package pokedex

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-pokedex/pkg/camera"
	"github.com/teslashibe/go-pokedex/pkg/inference"
)

// recorder collects notified names.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) Notify(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return nil
}

func (r *recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

var testFrame = camera.NewFrame("aGVsbG8=")

func TestDetector_Pikachu(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"confident", `{"name":"Pikachu","number":25,"probability":0.97}`, []string{"Pikachu"}},
		{"unsure", `{"name":"Pikachu","number":25,"probability":0.5}`, nil},
		{"boundary", `{"name":"Pikachu","number":25,"probability":0.9}`, nil},
		{"unknown", `{"name":"Unknown","number":0,"probability":0.0}`, nil},
		{"unknown but confident", `{"name":"Unknown","number":0,"probability":0.99}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := &recorder{}
			d := NewDetector(inference.NewMock(tt.response), notes)

			if _, err := d.Classify(context.Background(), testFrame); err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			got := notes.Names()
			if len(got) != len(tt.want) {
				t.Fatalf("notifications = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("notification[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDetector_Request(t *testing.T) {
	mock := inference.NewMock(`{"name":"Unknown","number":0,"probability":0}`)
	d := NewDetector(mock, nil)

	if _, err := d.Classify(context.Background(), testFrame); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	parts := calls[0].Parts
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	if parts[0].Text != Prompt {
		t.Error("first part should be the prompt")
	}
	if !strings.Contains(parts[0].Text, `"number": 0`) || strings.Contains(parts[0].Text, "numero") {
		t.Error("prompt should describe the unknown answer with the same keys")
	}
	if !parts[1].IsMedia() || parts[1].InlineData.MimeType != "image/jpeg" || parts[1].InlineData.Data != testFrame.Data {
		t.Errorf("second part = %+v, want the frame as image/jpeg", parts[1].InlineData)
	}
}

func TestDetector_Failures(t *testing.T) {
	tests := []struct {
		name    string
		answer  func(ctx context.Context, parts []inference.Part) (string, error)
		wantErr error
	}{
		{
			name: "transport",
			answer: func(ctx context.Context, parts []inference.Part) (string, error) {
				return "", &inference.APIError{StatusCode: 503, Message: "unavailable"}
			},
		},
		{
			name: "malformed",
			answer: func(ctx context.Context, parts []inference.Part) (string, error) {
				return "Looks like Pikachu to me", nil
			},
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := &recorder{}
			var cycles []Cycle
			d := NewDetector(&inference.Mock{GenerateFunc: tt.answer}, notes,
				WithObserver(ObserverFunc(func(c Cycle) { cycles = append(cycles, c) })))

			_, err := d.Classify(context.Background(), testFrame)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if len(notes.Names()) != 0 {
				t.Error("failed cycle must not notify")
			}
			if len(cycles) != 1 || cycles[0].Err == nil || cycles[0].Result != nil {
				t.Errorf("observed cycles = %+v", cycles)
			}
			if s := d.Stats(); s.Cycles != 1 || s.Failed != 1 {
				t.Errorf("Stats() = %+v", s)
			}
		})
	}
}

func TestDetector_ClassifyEmptyFrame(t *testing.T) {
	mock := inference.NewMock("{}")
	d := NewDetector(mock, nil)
	if _, err := d.Classify(context.Background(), camera.Frame{}); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("error = %v, want ErrEmptyFrame", err)
	}
	if mock.CallCount("GenerateContent") != 0 {
		t.Error("empty frame must not reach the provider")
	}
}

func TestDetector_HandleFrameIgnoresEmpty(t *testing.T) {
	mock := inference.NewMock("{}")
	d := NewDetector(mock, nil)
	if d.HandleFrame(context.Background(), camera.Frame{}) {
		t.Error("HandleFrame() started a cycle for an empty frame")
	}
	d.Wait()
	if mock.CallCount("GenerateContent") != 0 {
		t.Error("empty frame must not reach the provider")
	}
}

func TestDetector_InFlightGuard(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	mock := &inference.Mock{
		GenerateFunc: func(ctx context.Context, parts []inference.Part) (string, error) {
			started <- struct{}{}
			<-release
			return `{"name":"Pikachu","number":25,"probability":0.97}`, nil
		},
	}
	notes := &recorder{}
	d := NewDetector(mock, notes)
	ctx := context.Background()

	if !d.HandleFrame(ctx, testFrame) {
		t.Fatal("first frame should start a cycle")
	}
	<-started

	if d.HandleFrame(ctx, testFrame) {
		t.Error("frame during a cycle should be dropped")
	}
	if !d.Stats().InFlight {
		t.Error("Stats().InFlight = false during a cycle")
	}

	close(release)
	d.Wait()

	if !d.HandleFrame(ctx, testFrame) {
		t.Error("frame after the cycle should start a new one")
	}
	d.Wait()

	s := d.Stats()
	if s.Cycles != 2 || s.Dropped != 1 || s.Sightings != 2 {
		t.Errorf("Stats() = %+v, want 2 cycles, 1 dropped, 2 sightings", s)
	}
	if s.LastSighting == nil || s.LastSighting.Name != "Pikachu" {
		t.Errorf("LastSighting = %+v", s.LastSighting)
	}
	if got := notes.Names(); len(got) != 2 {
		t.Errorf("notifications = %v, want 2", got)
	}
}

func TestDetector_Watch(t *testing.T) {
	mock := inference.NewMock(`{"name":"Pikachu","number":25,"probability":0.97}`)
	notes := &recorder{}
	d := NewDetector(mock, notes)

	var frames camera.Value
	stop := d.Watch(context.Background(), &frames)

	frames.Publish(testFrame)
	d.Wait()
	stop()
	frames.Publish(testFrame)
	d.Wait()

	if got := notes.Names(); len(got) != 1 || got[0] != "Pikachu" {
		t.Errorf("notifications = %v, want [Pikachu]", got)
	}
}

func TestDetector_NotifierError(t *testing.T) {
	failing := NotifierFunc(func(ctx context.Context, name string) error {
		return errors.New("display gone")
	})
	d := NewDetector(inference.NewMock(`{"name":"Pikachu","number":25,"probability":0.97}`), failing)

	result, err := d.Classify(context.Background(), testFrame)
	if err == nil {
		t.Fatal("expected notify error")
	}
	if result.Name != "Pikachu" {
		t.Errorf("result = %+v", result)
	}
}

func TestDetector_Threshold(t *testing.T) {
	notes := &recorder{}
	d := NewDetector(inference.NewMock(`{"name":"Pikachu","number":25,"probability":0.5}`), notes,
		WithThreshold(0.4))
	if _, err := d.Classify(context.Background(), testFrame); err != nil {
		t.Fatal(err)
	}
	if len(notes.Names()) != 1 {
		t.Error("custom threshold not applied")
	}
}

func TestDetector_ContextCancel(t *testing.T) {
	mock := &inference.Mock{
		GenerateFunc: func(ctx context.Context, parts []inference.Part) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	d := NewDetector(mock, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := d.Classify(ctx, testFrame); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}
