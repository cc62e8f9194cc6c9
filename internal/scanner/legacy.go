package scanner

import (
	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/dispatch"
)

// The methods below are best-effort forms of the strict operations. They
// discard errors and leave the controller unchanged on failure.

// StartScanning starts with the selected camera, ignoring failures.
func (c *Controller) StartScanning(onResult dispatch.ResultFunc) {
	if err := c.Start(c.Camera(), onResult); err != nil {
		c.log.Debug("start scanning ignored", "error", err)
	}
}

// TryFlipCamera flips the camera if possible.
func (c *Controller) TryFlipCamera() {
	if err := c.FlipCamera(); err != nil {
		c.log.Debug("flip camera ignored", "error", err)
	}
}

// TrySetCamera selects a camera if possible.
func (c *Controller) TrySetCamera(pos capture.Position) {
	if err := c.SetCamera(pos); err != nil {
		c.log.Debug("set camera ignored", "error", err)
	}
}

// TrySetTorchMode sets the torch if the device supports the mode.
// Otherwise the request is discarded and TorchMode is unchanged.
func (c *Controller) TrySetTorchMode(mode capture.TorchMode) {
	if err := c.SetTorchMode(mode); err != nil {
		c.log.Debug("torch mode ignored", "mode", mode, "error", err)
	}
}

// ToggleTorch switches the torch between off and on.
func (c *Controller) ToggleTorch() {
	next := capture.TorchOn
	if c.TorchMode() != capture.TorchOff {
		next = capture.TorchOff
	}
	c.TrySetTorchMode(next)
}
