// Package preview provides the host display surface the scanner renders into.
package preview

import (
	"sync"

	"github.com/ayusman/codescan/internal/focus"
	"github.com/ayusman/codescan/internal/scanner"
)

// Surface is a headless display whose frames are served over HTTP.
// It satisfies scanner.Surface.
type Surface struct {
	mu      sync.RWMutex
	bounds  focus.Size
	layer   *scanner.PreviewLayer
	version uint64
}

// NewSurface creates a surface of the given size in view units.
func NewSurface(width, height float64) *Surface {
	return &Surface{bounds: focus.Size{Width: width, Height: height}}
}

// Bounds returns the surface size.
func (s *Surface) Bounds() focus.Size {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bounds
}

// Resize changes the surface size. Taps and scan regions use the new size
// from the next operation on.
func (s *Surface) Resize(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bounds = focus.Size{Width: width, Height: height}
}

// AttachLayer binds the scanner's preview layer.
func (s *Surface) AttachLayer(l *scanner.PreviewLayer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layer = l
	s.version++
}

// DetachLayer unbinds l if it is the current layer.
func (s *Surface) DetachLayer(l *scanner.PreviewLayer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layer == l {
		s.layer = nil
		s.version++
	}
}

// Layer returns the bound layer, or nil.
func (s *Surface) Layer() *scanner.PreviewLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layer
}

// Snapshot returns the latest JPEG frame, or nil if nothing is attached.
func (s *Surface) Snapshot() []byte {
	l := s.Layer()
	if l == nil {
		return nil
	}
	data, _ := l.Latest()
	return data
}

// Version changes every time a layer is attached or detached.
func (s *Surface) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
