package preview

import (
	"testing"

	"github.com/ayusman/codescan/internal/focus"
	"github.com/ayusman/codescan/internal/scanner"
)

var _ scanner.Surface = (*Surface)(nil)

func TestSurface(t *testing.T) {
	s := NewSurface(640, 480)
	if s.Bounds() != (focus.Size{Width: 640, Height: 480}) {
		t.Errorf("Bounds() = %+v", s.Bounds())
	}
	s.Resize(320, 320)
	if s.Bounds().Width != 320 {
		t.Errorf("Resize() not applied: %+v", s.Bounds())
	}

	if s.Layer() != nil || s.Snapshot() != nil {
		t.Error("new surface should have no layer")
	}

	a := &scanner.PreviewLayer{}
	b := &scanner.PreviewLayer{}
	v0 := s.Version()

	s.AttachLayer(a)
	if s.Layer() != a {
		t.Error("AttachLayer() did not bind")
	}
	if s.Snapshot() != nil {
		t.Error("Snapshot() before first frame should be nil")
	}

	s.DetachLayer(b)
	if s.Layer() != a {
		t.Error("DetachLayer() of another layer unbound the current one")
	}

	s.DetachLayer(a)
	if s.Layer() != nil {
		t.Error("DetachLayer() did not unbind")
	}
	if s.Version() != v0+2 {
		t.Errorf("Version() = %d, want %d", s.Version(), v0+2)
	}
}
