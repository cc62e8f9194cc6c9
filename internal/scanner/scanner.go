// Package scanner drives a camera capture session that recognizes codes and
// renders a live preview into a host surface.
//
// Public operations are safe to call from the host UI context and never block
// on hardware. Every session or device change runs on a private serial queue,
// and every callback is delivered on the UI executor.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/decoder"
	"github.com/ayusman/codescan/internal/device"
	"github.com/ayusman/codescan/internal/dispatch"
	"github.com/ayusman/codescan/internal/focus"
	"github.com/ayusman/codescan/internal/metrics"
	"github.com/ayusman/codescan/internal/permission"
	"github.com/ayusman/codescan/internal/queue"
)

// Config holds the collaborators and options of a Controller.
type Config struct {
	// Surface is the host display. Required.
	Surface Surface
	// Source enumerates and opens cameras. Required.
	Source capture.Source
	// Gate caches the camera authorization. Required.
	Gate *permission.Gate

	// UI runs callbacks. If nil the controller creates its own serial queue.
	UI queue.Executor
	// Decoder recognizes codes. Defaults to gozxing.
	Decoder decoder.Decoder
	// Symbologies filters results. Nil means all supported.
	Symbologies []decoder.Symbology

	Camera    capture.Position
	FPS       int
	FillMode  focus.FillMode
	FrameSize focus.Size
	TryHarder bool

	Logger *slog.Logger
}

// Capabilities is a snapshot of the capability queries.
type Capabilities struct {
	AnyCameraPresent   bool `json:"any_camera_present"`
	HasOppositeCamera  bool `json:"has_opposite_camera"`
	ScanningProhibited bool `json:"scanning_prohibited"`
	ScanningAvailable  bool `json:"scanning_available"`
	HasTorch           bool `json:"has_torch"`
}

// Controller owns the capture session, the active device and the preview
// binding.
type Controller struct {
	cfg        Config
	log        *slog.Logger
	ui         queue.Executor
	ownUI      *queue.Serial
	serial     *queue.Serial
	gate       *permission.Gate
	resolver   *device.Resolver
	prober     *device.Prober
	dispatcher *dispatch.Dispatcher
	session    *captureSession

	mu           sync.Mutex
	state        State
	gen          uint64
	camera       capture.Position
	device       capture.DeviceInfo
	torch        capture.TorchMode
	region       focus.Rect
	allowTap     bool
	stillPending bool
	stillPrior   State
	layer        *PreviewLayer
	closed       bool

	onStarted     func()
	onStartFailed func(error)
	onError       func(error)
	onStateChange func(State)
	onTapToFocus  func(focus.Point)
}

// New creates an idle controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Surface == nil {
		return nil, errors.New("scanner: surface is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("scanner: camera source is required")
	}
	if cfg.Gate == nil {
		return nil, errors.New("scanner: permission gate is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.NewZXingDecoder()
	}
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.FrameSize.Empty() {
		cfg.FrameSize = focus.Size{Width: capture.DefaultWidth, Height: capture.DefaultHeight}
	}

	logger := cfg.Logger.With("component", "scanner")
	c := &Controller{
		cfg:      cfg,
		log:      logger,
		ui:       cfg.UI,
		serial:   queue.NewSerial("session", logger),
		gate:     cfg.Gate,
		resolver: device.NewResolver(cfg.Source),
		session:  newCaptureSession(logger, cfg.FrameSize),
		camera:   cfg.Camera,
		allowTap: true,
	}
	if c.ui == nil {
		c.ownUI = queue.NewSerial("ui", logger)
		c.ui = c.ownUI
	}
	c.prober = device.NewProber(c.resolver, c.gate)
	c.dispatcher = dispatch.New(c.ui, cfg.Symbologies)
	return c, nil
}

// OnStarted registers a hook fired on the UI executor once scanning starts.
func (c *Controller) OnStarted(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStarted = fn
}

// OnStartFailed registers a hook fired on the UI executor when an accepted
// Start fails asynchronously.
func (c *Controller) OnStartFailed(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStartFailed = fn
}

// OnError registers a hook for asynchronous failures of camera and torch
// changes.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// OnStateChange registers a hook fired on the UI executor after each
// transition.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// OnTapToFocus registers the tap feedback hook. It receives the point passed
// to SetFocusPoint.
func (c *Controller) OnTapToFocus(fn func(focus.Point)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTapToFocus = fn
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsScanning reports whether the session is running.
func (c *Controller) IsScanning() bool {
	return c.State().Active()
}

// Camera returns the selected logical camera.
func (c *Controller) Camera() capture.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera
}

// TorchMode returns the torch mode of the active device.
func (c *Controller) TorchMode() capture.TorchMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torch
}

// ActiveDevice returns the device in use and whether a session is active.
func (c *Controller) ActiveDevice() (capture.DeviceInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device, c.state.Active()
}

// PreviewLayer returns the attached preview layer, or nil when not scanning.
func (c *Controller) PreviewLayer() *PreviewLayer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layer
}

// Symbologies returns the result filter, or nil for all.
func (c *Controller) Symbologies() []decoder.Symbology {
	return c.dispatcher.Symbologies()
}

// Prober returns the capability prober.
func (c *Controller) Prober() *device.Prober {
	return c.prober
}

// Capabilities answers every capability query at once.
func (c *Controller) Capabilities() Capabilities {
	c.mu.Lock()
	pos, info, active := c.camera, c.device, c.state.Active()
	c.mu.Unlock()

	if !active {
		if resolved, err := c.resolver.Resolve(pos); err == nil {
			info = resolved
		}
	}
	return Capabilities{
		AnyCameraPresent:   c.prober.AnyCameraPresent(),
		HasOppositeCamera:  c.prober.HasOppositeCamera(pos),
		ScanningProhibited: c.prober.ScanningProhibited(),
		ScanningAvailable:  c.prober.ScanningAvailable(),
		HasTorch:           c.prober.HasTorch(info),
	}
}

// PermissionStatus returns the camera authorization state.
func (c *Controller) PermissionStatus() permission.Status {
	return c.gate.Status()
}

// RequestPermission asks for camera access once per process. cb runs on the
// UI executor.
func (c *Controller) RequestPermission(cb func(granted bool)) {
	c.gate.Request(func(granted bool) {
		if cb != nil {
			cb(granted)
		}
	})
}

// Start begins scanning with the given camera. Validation errors are
// returned synchronously; configuration happens on the serial queue and is
// reported through OnStarted or OnStartFailed. onResult receives non-empty
// result batches on the UI executor.
func (c *Controller) Start(pos capture.Position, onResult dispatch.ResultFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("start: controller closed: %w", ErrInvalidState)
	}
	if c.state != Idle {
		return ErrAlreadyStarted
	}
	if c.prober.ScanningProhibited() {
		return ErrPermissionDenied
	}

	// Resolve the device now so a missing camera fails synchronously
	info, err := c.resolver.Resolve(pos)
	if err != nil {
		if errors.Is(err, ErrDeviceNotAvailable) {
			return fmt.Errorf("start: %w", err)
		}
		return fmt.Errorf("start: %w: %v", ErrDeviceNotAvailable, err)
	}

	c.gen++
	gen := c.gen
	c.camera = pos
	c.device = info
	c.torch = capture.TorchOff
	c.region = focus.Rect{}
	c.dispatcher.SetResultFunc(onResult)
	c.setStateLocked(Starting)

	c.log.Info("starting", "camera", pos, "device", info.ID)
	c.serial.Dispatch(func() { c.configure(gen, info) })
	return nil
}

// configure runs on the serial queue.
func (c *Controller) configure(gen uint64, info capture.DeviceInfo) {
	if !c.current(gen) {
		return
	}

	// Ask for permission if nobody has yet
	if c.gate.Status() == permission.NotDetermined {
		st, err := c.gate.Resolve(context.Background())
		if err != nil || st != permission.Authorized {
			c.failStart(gen, ErrPermissionDenied)
			return
		}
		if !c.current(gen) {
			return
		}
	}

	// Open the device
	cam, err := c.cfg.Source.Open(info)
	if err != nil {
		c.failStart(gen, fmt.Errorf("%w: %v", ErrConfigurationFailed, err))
		return
	}
	if err := cam.Open(); err != nil {
		c.failStart(gen, fmt.Errorf("%w: open %s: %v", ErrConfigurationFailed, info.ID, err))
		return
	}
	cam.SetFPS(c.cfg.FPS)

	// Input, metadata output and preview layer go in as one transaction
	layer := newPreviewLayer(c.cfg.FillMode)
	symbologies := c.dispatcher.Symbologies()
	if symbologies == nil {
		symbologies = decoder.AllSymbologies()
	}
	_, err = c.session.begin().
		SetInput(cam).
		SetOutput(&output{symbologies: symbologies, tryHarder: c.cfg.TryHarder}).
		SetLayer(layer).
		Commit()
	if err != nil {
		cam.Close()
		c.failStart(gen, err)
		return
	}

	if info.AutoFocus {
		if err := cam.SetAutoFocus(true); err != nil {
			c.log.Warn("enable autofocus", "device", info.ID, "error", err)
		}
	}

	c.mu.Lock()
	if c.gen != gen {
		// Stop was called; its teardown is queued behind us.
		c.mu.Unlock()
		return
	}
	// Start delivering frames
	c.dispatcher.Resume()
	c.session.startPump(pumpDeps{
		decoder:    c.cfg.Decoder,
		dispatcher: c.dispatcher,
		surface:    c.cfg.Surface,
		mode:       c.cfg.FillMode,
		fps:        c.cfg.FPS,
	})
	c.layer = layer
	c.setStateLocked(Scanning)
	started := c.onStarted
	c.mu.Unlock()

	c.log.Info("scanning", "device", info.ID)

	// The surface is only touched on the UI executor
	c.ui.Dispatch(func() {
		c.cfg.Surface.AttachLayer(layer)
		if started != nil {
			started()
		}
	})
}

func (c *Controller) failStart(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(Idle)
	cb := c.onStartFailed
	c.mu.Unlock()

	c.log.Error("start failed", "error", err)
	if cb != nil {
		c.ui.Dispatch(func() { cb(err) })
	}
}

// Stop tears the session down. It is a no-op when idle or already stopping.
// Callbacks already dispatched are not retracted.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Idle || c.state == Stopping {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.setStateLocked(Stopping)
	c.mu.Unlock()

	c.dispatcher.Pause()
	c.log.Info("stopping")
	c.serial.Dispatch(func() { c.teardown(gen) })
}

// teardown runs on the serial queue.
func (c *Controller) teardown(gen uint64) {
	// Stop the pump before the input goes away
	c.session.stopPump()

	// Leave the torch off and release the device
	if old := c.session.clear(); old != nil {
		if old.Info().HasTorch() {
			if err := old.SetTorchMode(capture.TorchOff); err != nil {
				c.log.Debug("torch off", "error", err)
			}
		}
		if err := old.Close(); err != nil {
			c.log.Warn("close camera", "device", old.Info().ID, "error", err)
		}
	}

	// Reset per-session settings
	c.mu.Lock()
	layer := c.layer
	c.layer = nil
	c.torch = capture.TorchOff
	c.region = focus.Rect{}
	if c.gen == gen {
		c.setStateLocked(Idle)
	}
	c.mu.Unlock()

	if layer != nil {
		c.ui.Dispatch(func() {
			c.cfg.Surface.DetachLayer(layer)
			layer.close()
		})
	}
	c.log.Info("stopped")
}

// Close stops the session, waits for queued work and releases the decoder.
// The controller cannot be restarted afterwards.
func (c *Controller) Close() error {
	c.Stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.serial.Close()
	if c.ownUI != nil {
		c.ownUI.Close()
	}
	return c.cfg.Decoder.Close()
}

// current reports whether no Start or Stop happened since gen was taken.
func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// effectiveLocked is the state operations are validated against. A pending
// still capture does not change what the session otherwise allows.
func (c *Controller) effectiveLocked() State {
	if c.state == CapturingStill {
		return c.stillPrior
	}
	return c.state
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	from := c.state
	c.state = s
	metrics.Transitions.WithLabelValues(from.String(), s.String()).Inc()
	c.log.Debug("state", "from", from, "to", s)

	if fn := c.onStateChange; fn != nil {
		c.ui.Dispatch(func() { fn(s) })
	}
}

func (c *Controller) reportError(err error) {
	c.mu.Lock()
	cb := c.onError
	c.mu.Unlock()

	c.log.Error("scanner error", "error", err)
	if cb != nil {
		c.ui.Dispatch(func() { cb(err) })
	}
}
