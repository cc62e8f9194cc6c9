package scanner

import (
	"errors"

	"github.com/ayusman/codescan/internal/device"
)

var (
	// ErrPermissionDenied is returned when camera access is denied or restricted.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrDeviceNotAvailable is returned when no device matches the requested camera.
	ErrDeviceNotAvailable = device.ErrNotAvailable

	// ErrAlreadyStarted is returned by Start when the controller is not idle.
	ErrAlreadyStarted = errors.New("scanner already started")

	// ErrInvalidState is returned when an operation is not valid in the current state.
	ErrInvalidState = errors.New("operation invalid in current scanner state")

	// ErrConfigurationFailed is returned when the capture session rejects a configuration.
	ErrConfigurationFailed = errors.New("capture session configuration failed")

	// ErrTorchUnsupported is returned when the device lacks a torch or the requested mode.
	ErrTorchUnsupported = errors.New("torch mode not supported by device")

	// ErrCaptureInProgress is returned when a still capture is already pending.
	ErrCaptureInProgress = errors.New("still capture already in progress")

	// ErrCaptureFailed is reported when a still capture could not produce an image.
	ErrCaptureFailed = errors.New("still capture failed")

	// ErrInvalidScanRegion is returned for regions outside the unit square.
	ErrInvalidScanRegion = errors.New("scan region must be a non-empty rectangle within [0,1]")
)
