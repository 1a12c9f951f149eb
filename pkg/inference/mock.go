package inference

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// GenerateFunc is called when GenerateContent is invoked.
	GenerateFunc func(ctx context.Context, parts []Part) (string, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Parts  []Part
	Time   time.Time
}

// NewMock creates a mock provider that answers every request with text.
func NewMock(text string) *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, parts []Part) (string, error) {
			return text, nil
		},
	}
}

// GenerateContent calls GenerateFunc and records the call.
func (m *Mock) GenerateContent(ctx context.Context, parts []Part) (string, error) {
	m.record("GenerateContent", parts)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, parts)
	}
	return "", WrapError("mock", ErrEmptyResponse)
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close", nil)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of calls to a specific method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *Mock) record(method string, parts []Part) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Parts: parts, Time: time.Now()})
}

// Ensure Mock implements Provider.
var _ Provider = (*Mock)(nil)
