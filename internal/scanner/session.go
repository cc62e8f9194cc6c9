package scanner

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/decoder"
	"github.com/ayusman/codescan/internal/dispatch"
	"github.com/ayusman/codescan/internal/focus"
	"github.com/ayusman/codescan/internal/metrics"
)

// output is the metadata output of a session.
type output struct {
	symbologies []decoder.Symbology
	tryHarder   bool
}

// captureSession holds the configured input, output and preview layer.
// Configuration changes go through transactions and happen on the
// controller's serial queue; the frame pump reads under mu.
type captureSession struct {
	log *slog.Logger

	mu     sync.Mutex
	input  capture.Camera
	out    *output
	layer  *PreviewLayer
	region focus.Rect
	frozen bool
	last   *gocv.Mat
	size   focus.Size

	stopCh chan struct{}
	done   chan struct{}
}

func newCaptureSession(logger *slog.Logger, defaultSize focus.Size) *captureSession {
	return &captureSession{log: logger, size: defaultSize}
}

// transaction batches session changes so they are committed together or
// not at all.
type transaction struct {
	s *captureSession

	input    capture.Camera
	out      *output
	layer    *PreviewLayer
	setInput bool
	setOut   bool
	setLayer bool
}

func (s *captureSession) begin() *transaction {
	return &transaction{s: s}
}

func (tx *transaction) SetInput(cam capture.Camera) *transaction {
	tx.input, tx.setInput = cam, true
	return tx
}

func (tx *transaction) SetOutput(o *output) *transaction {
	tx.out, tx.setOut = o, true
	return tx
}

func (tx *transaction) SetLayer(l *PreviewLayer) *transaction {
	tx.layer, tx.setLayer = l, true
	return tx
}

// Commit validates the resulting configuration and applies it atomically.
// It returns the input that was replaced, which the caller must release.
func (tx *transaction) Commit() (capture.Camera, error) {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	input, out, layer := s.input, s.out, s.layer
	if tx.setInput {
		input = tx.input
	}
	if tx.setOut {
		out = tx.out
	}
	if tx.setLayer {
		layer = tx.layer
	}

	if err := validate(input, out, layer); err != nil {
		metrics.Transactions.WithLabelValues("failed").Inc()
		return nil, err
	}

	old := s.input
	if old == input {
		old = nil
	}
	s.input, s.out, s.layer = input, out, layer
	metrics.Transactions.WithLabelValues("committed").Inc()
	return old, nil
}

func validate(input capture.Camera, out *output, layer *PreviewLayer) error {
	if input == nil {
		if out != nil || layer != nil {
			return fmt.Errorf("%w: output without input", ErrConfigurationFailed)
		}
		return nil
	}
	if !input.IsOpen() {
		return fmt.Errorf("%w: input %s is not open", ErrConfigurationFailed, input.Info().ID)
	}
	if out != nil && len(out.symbologies) == 0 {
		return fmt.Errorf("%w: output has no symbologies", ErrConfigurationFailed)
	}
	return nil
}

// clear removes input, output and layer in one transaction and drops any
// held frame. It returns the removed input.
func (s *captureSession) clear() capture.Camera {
	old, err := s.begin().SetInput(nil).SetOutput(nil).SetLayer(nil).Commit()
	if err != nil {
		// Removing everything is always valid.
		s.log.Error("clear session", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = false
	s.region = focus.Rect{}
	if s.last != nil {
		s.last.Close()
		s.last = nil
	}
	return old
}

func (s *captureSession) currentInput() capture.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *captureSession) setRegion(r focus.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.region = r
}

func (s *captureSession) setFrozen(frozen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = frozen
}

func (s *captureSession) frameSize() focus.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// pumpDeps are the collaborators the frame pump feeds.
type pumpDeps struct {
	decoder    decoder.Decoder
	dispatcher *dispatch.Dispatcher
	surface    Surface
	mode       focus.FillMode
	fps        int
}

// startPump launches the frame loop. It is a no-op if the pump is running.
func (s *captureSession) startPump(deps pumpDeps) {
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.runPump(deps, s.stopCh, s.done)
}

// stopPump stops the frame loop and waits for it to exit.
func (s *captureSession) stopPump() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.done
	s.stopCh, s.done = nil, nil
}

// frame is one read from the input with the configuration it was read under.
type frame struct {
	mat    *gocv.Mat
	camera capture.Position
	out    output
	layer  *PreviewLayer
	region focus.Rect
}

// read pulls a frame from the current input. It returns false while frozen
// or when no output is configured.
func (s *captureSession) read() (frame, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen || s.input == nil || s.out == nil {
		return frame{}, false, nil
	}

	mat, err := s.input.ReadFrame()
	if err != nil {
		return frame{}, false, err
	}

	s.size = focus.Size{Width: float64(mat.Cols()), Height: float64(mat.Rows())}
	if s.last != nil {
		s.last.Close()
	}
	held := mat.Clone()
	s.last = &held

	return frame{
		mat:    mat,
		camera: s.input.Info().Position,
		out:    *s.out,
		layer:  s.layer,
		region: s.region,
	}, true, nil
}

// runPump is the frame loop: read, present, decode and submit.
func (s *captureSession) runPump(deps pumpDeps, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	fps := deps.fps
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		f, ok, err := s.read()
		if err != nil {
			metrics.FrameErrors.Inc()
			s.log.Debug("read frame", "error", err)
			continue
		}
		if !ok {
			continue
		}
		seq++
		s.process(deps, f, seq)
	}
}

func (s *captureSession) process(deps pumpDeps, f frame, seq uint64) {
	defer f.mat.Close()
	metrics.FramesProcessed.WithLabelValues(f.camera.String()).Inc()

	if f.layer != nil {
		if err := f.layer.present(f.mat, seq); err != nil {
			s.log.Debug("present frame", "error", err)
		}
	}

	geo := focus.Geometry{
		Bounds: deps.surface.Bounds(),
		Frame:  focus.Size{Width: float64(f.mat.Cols()), Height: float64(f.mat.Rows())},
		Mode:   deps.mode,
	}
	opts := decoder.Options{
		Symbologies: f.out.symbologies,
		TryHarder:   f.out.tryHarder,
	}
	if !f.region.IsZero() {
		opts.Region = geo.RectOfInterest(f.region)
		// A region inside the letterbox bars sees none of the frame.
		if opts.Region.Empty() {
			return
		}
	}

	start := time.Now()
	codes, err := deps.decoder.Decode(f.mat, opts)
	metrics.DecodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Warn("decode frame", "seq", seq, "error", err)
		return
	}

	for i := range codes {
		codes[i].PreviewCorners = make([]focus.Point, len(codes[i].Corners))
		for j, p := range codes[i].Corners {
			codes[i].PreviewCorners[j] = geo.ViewPoint(p)
		}
	}

	deps.dispatcher.Submit(dispatch.Batch{
		Seq:        seq,
		CapturedAt: time.Now(),
		Camera:     f.camera,
		Codes:      codes,
	})
}

// Still is a captured still image.
type Still struct {
	JPEG       []byte           `json:"-"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	CapturedAt time.Time        `json:"captured_at"`
	Camera     capture.Position `json:"camera"`
}

// still encodes the held frame while frozen, or a fresh frame otherwise.
func (s *captureSession) still() (*Still, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input == nil {
		return nil, fmt.Errorf("%w: no input", ErrCaptureFailed)
	}

	var mat *gocv.Mat
	if s.frozen && s.last != nil {
		clone := s.last.Clone()
		mat = &clone
	} else {
		m, err := s.input.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
		}
		mat = m
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrCaptureFailed)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *mat)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrCaptureFailed, err)
	}
	defer buf.Close()

	return &Still{
		JPEG:       append([]byte(nil), buf.GetBytes()...),
		Width:      mat.Cols(),
		Height:     mat.Rows(),
		CapturedAt: time.Now(),
		Camera:     s.input.Info().Position,
	}, nil
}
