package scanner

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/codescan/internal/focus"
)

// Surface is the host-owned display the preview is rendered into.
// The controller never owns its layout; it only attaches and detaches a
// layer inside Start and Stop. AttachLayer and DetachLayer run on the UI
// executor. Bounds may be called from any goroutine.
type Surface interface {
	Bounds() focus.Size
	AttachLayer(l *PreviewLayer)
	DetachLayer(l *PreviewLayer)
}

// PreviewLayer carries the live preview of one session as JPEG frames.
type PreviewLayer struct {
	mode focus.FillMode

	mu     sync.Mutex
	frame  []byte
	seq    uint64
	size   focus.Size
	subs   map[chan []byte]struct{}
	closed bool
}

func newPreviewLayer(mode focus.FillMode) *PreviewLayer {
	return &PreviewLayer{
		mode: mode,
		subs: make(map[chan []byte]struct{}),
	}
}

// FillMode returns how frames should be scaled into the surface.
func (l *PreviewLayer) FillMode() focus.FillMode {
	return l.mode
}

// Latest returns the most recent JPEG frame and its sequence number.
// It returns nil before the first frame.
func (l *PreviewLayer) Latest() ([]byte, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frame, l.seq
}

// FrameSize returns the pixel size of the most recent frame.
func (l *PreviewLayer) FrameSize() focus.Size {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Closed reports whether the layer was detached.
func (l *PreviewLayer) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Subscribe returns a channel of JPEG frames and a cancel function.
// Slow subscribers miss frames. The channel is closed when the layer is
// detached or cancel is called.
func (l *PreviewLayer) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	l.subs[ch] = struct{}{}
	if l.frame != nil {
		ch <- l.frame
	}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if _, ok := l.subs[ch]; ok {
				delete(l.subs, ch)
				close(ch)
			}
		})
	}
}

// present encodes frame and publishes it to subscribers.
func (l *PreviewLayer) present(frame *gocv.Mat, seq uint64) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.frame = data
	l.seq = seq
	l.size = focus.Size{Width: float64(frame.Cols()), Height: float64(frame.Rows())}
	for ch := range l.subs {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

func (l *PreviewLayer) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for ch := range l.subs {
		close(ch)
	}
	l.subs = nil
}
