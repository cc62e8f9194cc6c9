package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back pre-recorded frames for testing and records the
// hardware calls made against it.
type MockCamera struct {
	info    DeviceInfo
	frames  []*gocv.Mat
	index   int
	loop    bool
	mu      sync.Mutex
	running bool
	fps     int

	openErr  error
	torchErr error

	torch     TorchMode
	autoFocus bool
	focus     []Point2
	exposure  []Point2
	opens     int
	closes    int
}

// Point2 is a recorded normalized point.
type Point2 struct {
	X, Y float64
}

// NewMockCamera creates a mock camera for the device that plays frames.
func NewMockCamera(info DeviceInfo, frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		info:   info,
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
	}
}

func (c *MockCamera) Info() DeviceInfo { return c.info }

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.running = true
	c.index = 0
	c.opens++
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.closes++
	}
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	if c.index >= len(c.frames) {
		if c.loop {
			c.index = 0
		} else {
			return nil, fmt.Errorf("no more frames")
		}
	}

	// Clone the frame so the original isn't modified
	frame := c.frames[c.index].Clone()
	c.index++

	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *MockCamera) SetTorchMode(mode TorchMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torchErr != nil {
		return c.torchErr
	}
	if !c.info.SupportsTorchMode(mode) {
		return ErrUnsupported
	}
	c.torch = mode
	return nil
}

func (c *MockCamera) SetAutoFocus(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.info.AutoFocus {
		return ErrUnsupported
	}
	c.autoFocus = enabled
	return nil
}

func (c *MockCamera) SetFocusPoint(x, y float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.info.FocusPointOfInterest {
		return ErrUnsupported
	}
	c.focus = append(c.focus, Point2{x, y})
	return nil
}

func (c *MockCamera) SetExposurePoint(x, y float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.info.ExposurePointOfInterest {
		return ErrUnsupported
	}
	c.exposure = append(c.exposure, Point2{x, y})
	return nil
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}

// FailOpen makes the next Open calls return err. Pass nil to clear.
func (c *MockCamera) FailOpen(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

// FailTorch makes SetTorchMode return err. Pass nil to clear.
func (c *MockCamera) FailTorch(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.torchErr = err
}

// Torch returns the torch mode last applied to the hardware.
func (c *MockCamera) Torch() TorchMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torch
}

// AutoFocusEnabled reports whether continuous autofocus was enabled.
func (c *MockCamera) AutoFocusEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoFocus
}

// FocusPoints returns the focus points applied so far.
func (c *MockCamera) FocusPoints() []Point2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Point2(nil), c.focus...)
}

// ExposurePoints returns the exposure points applied so far.
func (c *MockCamera) ExposurePoints() []Point2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Point2(nil), c.exposure...)
}

// OpenCount returns how many times the camera was opened.
func (c *MockCamera) OpenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// CloseCount returns how many times an open camera was closed.
func (c *MockCamera) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// MockSource hands out MockCameras for a fixed device list.
type MockSource struct {
	mu      sync.Mutex
	devices []DeviceInfo
	cameras map[string]*MockCamera
	err     error
}

// NewMockSource creates a source whose cameras all play frames.
func NewMockSource(frames []*gocv.Mat, devices ...DeviceInfo) *MockSource {
	s := &MockSource{
		devices: devices,
		cameras: make(map[string]*MockCamera),
	}
	for _, d := range devices {
		s.cameras[d.ID] = NewMockCamera(d, frames, true)
	}
	return s
}

func (s *MockSource) Devices() ([]DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]DeviceInfo(nil), s.devices...), nil
}

func (s *MockSource) Open(info DeviceInfo) (Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, ok := s.cameras[info.ID]
	if !ok {
		return nil, fmt.Errorf("device %s is not configured", info.ID)
	}
	return cam, nil
}

// Camera returns the mock camera for a device ID.
func (s *MockSource) Camera(id string) *MockCamera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameras[id]
}

// FailDevices makes Devices return err. Pass nil to clear.
func (s *MockSource) FailDevices(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
