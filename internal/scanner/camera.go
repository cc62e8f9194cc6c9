package scanner

import (
	"fmt"

	"github.com/ayusman/codescan/internal/capture"
)

// FlipCamera switches to the opposite logical camera while scanning.
// If the opposite camera cannot be resolved nothing changes.
func (c *Controller) FlipCamera() error {
	return c.switchCamera(func(cur capture.Position) capture.Position {
		return cur.Opposite()
	})
}

// SetCamera selects a logical camera. While idle it only sets the camera
// used by the next Start; while scanning it swaps the session input.
func (c *Controller) SetCamera(pos capture.Position) error {
	return c.switchCamera(func(capture.Position) capture.Position {
		return pos
	})
}

func (c *Controller) switchCamera(target func(capture.Position) capture.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos := target(c.camera)
	switch c.effectiveLocked() {
	case Idle:
		c.camera = pos
		return nil
	case Scanning, Frozen:
	default:
		return fmt.Errorf("switch camera in %s: %w", c.state, ErrInvalidState)
	}

	if pos == c.camera {
		return nil
	}
	if c.prober.ScanningProhibited() {
		return ErrPermissionDenied
	}
	info, err := c.resolver.Resolve(pos)
	if err != nil {
		return fmt.Errorf("switch camera: %w", err)
	}

	prev := revert{camera: c.camera, device: c.device, torch: c.torch}
	c.camera = pos
	c.device = info
	c.torch = capture.TorchOff
	gen := c.gen

	c.log.Info("switching camera", "camera", pos, "device", info.ID)
	c.serial.Dispatch(func() { c.swapInput(gen, info, prev) })
	return nil
}

// revert is the camera selection restored when a swap fails.
type revert struct {
	camera capture.Position
	device capture.DeviceInfo
	torch  capture.TorchMode
}

// swapInput runs on the serial queue. The old input is replaced in one
// transaction so the session keeps running.
func (c *Controller) swapInput(gen uint64, info capture.DeviceInfo, prev revert) {
	if !c.current(gen) {
		return
	}

	cam, err := c.cfg.Source.Open(info)
	if err != nil {
		c.revertCamera(gen, info, prev, fmt.Errorf("%w: %v", ErrConfigurationFailed, err))
		return
	}
	if err := cam.Open(); err != nil {
		c.revertCamera(gen, info, prev, fmt.Errorf("%w: open %s: %v", ErrConfigurationFailed, info.ID, err))
		return
	}
	cam.SetFPS(c.cfg.FPS)

	old, err := c.session.begin().SetInput(cam).Commit()
	if err != nil {
		cam.Close()
		c.revertCamera(gen, info, prev, err)
		return
	}

	if old != nil {
		if old.Info().HasTorch() {
			if err := old.SetTorchMode(capture.TorchOff); err != nil {
				c.log.Debug("torch off", "error", err)
			}
		}
		if err := old.Close(); err != nil {
			c.log.Warn("close camera", "device", old.Info().ID, "error", err)
		}
	}
	if info.AutoFocus {
		if err := cam.SetAutoFocus(true); err != nil {
			c.log.Warn("enable autofocus", "device", info.ID, "error", err)
		}
	}
	c.log.Info("camera switched", "device", info.ID)
}

func (c *Controller) revertCamera(gen uint64, info capture.DeviceInfo, prev revert, err error) {
	c.mu.Lock()
	if c.gen == gen && c.device.ID == info.ID {
		c.camera = prev.camera
		c.device = prev.device
		c.torch = prev.torch
	}
	c.mu.Unlock()

	c.reportError(fmt.Errorf("switch to %s: %w", info.ID, err))
}
