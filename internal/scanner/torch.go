package scanner

import (
	"fmt"

	"github.com/ayusman/codescan/internal/capture"
)

// SetTorchMode sets the torch of the active device. It fails with
// ErrTorchUnsupported if the device has no torch or lacks the mode.
func (c *Controller) SetTorchMode(mode capture.TorchMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.effectiveLocked(); st != Scanning && st != Frozen {
		return fmt.Errorf("set torch in %s: %w", c.state, ErrInvalidState)
	}
	if !c.prober.HasTorch(c.device) || !c.device.SupportsTorchMode(mode) {
		return fmt.Errorf("torch %s on %s: %w", mode, c.device.ID, ErrTorchUnsupported)
	}
	if mode == c.torch {
		return nil
	}

	prev := c.torch
	c.torch = mode
	gen := c.gen
	id := c.device.ID

	c.serial.Dispatch(func() { c.applyTorch(gen, id, mode, prev) })
	return nil
}

// applyTorch runs on the serial queue.
func (c *Controller) applyTorch(gen uint64, id string, mode, prev capture.TorchMode) {
	if !c.current(gen) {
		return
	}
	cam := c.session.currentInput()
	if cam == nil || cam.Info().ID != id {
		// A camera swap failed or is still ahead of us.
		return
	}

	if err := cam.SetTorchMode(mode); err != nil {
		c.mu.Lock()
		if c.gen == gen && c.torch == mode {
			c.torch = prev
		}
		c.mu.Unlock()
		c.reportError(fmt.Errorf("torch %s: %w: %v", mode, ErrTorchUnsupported, err))
		return
	}
	c.log.Debug("torch", "mode", mode)
}
