// Package capture provides camera devices for the scanner using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// ErrCameraNotOpen is returned when trying to use a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// ErrUnsupported is returned when a device lacks the requested capability.
var ErrUnsupported = errors.New("operation not supported by device")

// Camera defines the interface for a physical capture device.
type Camera interface {
	Info() DeviceInfo
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool

	SetTorchMode(mode TorchMode) error
	SetAutoFocus(enabled bool) error
	// SetFocusPoint and SetExposurePoint take normalized frame coordinates.
	SetFocusPoint(x, y float64) error
	SetExposurePoint(x, y float64) error
}

// Source enumerates capture devices and hands out cameras for them.
type Source interface {
	Devices() ([]DeviceInfo, error)
	// Open returns a camera for the device. The camera is not opened yet.
	Open(info DeviceInfo) (Camera, error)
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	info    DeviceInfo
	width   int
	height  int
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a new Camera for the given device.
func NewCamera(info DeviceInfo, width, height int) Camera {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &cameraImpl{
		info:   info,
		width:  width,
		height: height,
		fps:    DefaultFPS,
	}
}

// Info returns the device description the camera was created with.
func (c *cameraImpl) Info() DeviceInfo {
	return c.info
}

// Open opens the camera for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.info.Index)
	if err != nil {
		return fmt.Errorf("open device %s: %w", c.info.ID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open device %s: not available", c.info.ID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// SetTorchMode fails unless the device was configured with a torch.
// OpenCV has no portable torch control, so only Off is accepted.
func (c *cameraImpl) SetTorchMode(mode TorchMode) error {
	if !c.info.SupportsTorchMode(mode) || mode != TorchOff {
		return ErrUnsupported
	}
	return nil
}

// SetAutoFocus toggles continuous autofocus through the capture backend.
func (c *cameraImpl) SetAutoFocus(enabled bool) error {
	if !c.info.AutoFocus {
		return ErrUnsupported
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return ErrCameraNotOpen
	}

	v := 0.0
	if enabled {
		v = 1.0
	}
	c.capture.Set(gocv.VideoCaptureAutoFocus, v)
	return nil
}

// SetFocusPoint is not available through OpenCV capture backends.
func (c *cameraImpl) SetFocusPoint(x, y float64) error {
	return ErrUnsupported
}

// SetExposurePoint is not available through OpenCV capture backends.
func (c *cameraImpl) SetExposurePoint(x, y float64) error {
	return ErrUnsupported
}

// GoCVSource serves a fixed list of OpenCV device indexes.
type GoCVSource struct {
	devices []DeviceInfo
	width   int
	height  int
}

// NewGoCVSource creates a source for the given devices.
// With no devices, index 0 is assumed to be the primary back camera.
func NewGoCVSource(devices []DeviceInfo, width, height int) *GoCVSource {
	if len(devices) == 0 {
		devices = []DeviceInfo{{
			ID:        "cam0",
			Name:      "Default camera",
			Index:     0,
			Position:  PositionBack,
			Primary:   true,
			AutoFocus: true,
		}}
	}
	return &GoCVSource{
		devices: devices,
		width:   width,
		height:  height,
	}
}

// Devices returns the configured devices.
func (s *GoCVSource) Devices() ([]DeviceInfo, error) {
	out := make([]DeviceInfo, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

// Open returns an unopened camera for a configured device.
func (s *GoCVSource) Open(info DeviceInfo) (Camera, error) {
	for _, d := range s.devices {
		if d.ID == info.ID {
			return NewCamera(d, s.width, s.height), nil
		}
	}
	return nil, fmt.Errorf("device %s is not configured", info.ID)
}
