package decoder

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDecoder is a test implementation of the Decoder interface.
// It allows tests to control the decode results.
type MockDecoder struct {
	mu    sync.Mutex
	codes []Code
	err   error
	calls int
	last  Options
}

// NewMockDecoder creates a new MockDecoder instance.
func NewMockDecoder() *MockDecoder {
	return &MockDecoder{}
}

// SetCodes sets the codes that will be returned by Decode.
func (m *MockDecoder) SetCodes(codes ...Code) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = codes
}

// SetError sets the error that will be returned by Decode.
func (m *MockDecoder) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Decode returns the pre-configured codes or error.
func (m *MockDecoder) Decode(frame *gocv.Mat, opts Options) ([]Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = opts
	if m.err != nil {
		return nil, m.err
	}
	return append([]Code(nil), m.codes...), nil
}

// Calls returns how many frames were decoded.
func (m *MockDecoder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastOptions returns the options of the most recent Decode call.
func (m *MockDecoder) LastOptions() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Close is a no-op for the mock decoder.
func (m *MockDecoder) Close() error {
	return nil
}
