package scanner

import (
	"fmt"

	"github.com/ayusman/codescan/internal/metrics"
)

// CaptureStillImage captures one JPEG still. While frozen the held frame is
// used. cb runs on the UI executor with the image or an error. A second
// request while one is pending fails with ErrCaptureInProgress.
func (c *Controller) CaptureStillImage(cb func(*Still, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stillPending {
		return ErrCaptureInProgress
	}
	if st := c.effectiveLocked(); st != Scanning && st != Frozen {
		return fmt.Errorf("capture still in %s: %w", c.state, ErrInvalidState)
	}

	c.stillPending = true
	gen := c.gen
	c.serial.Dispatch(func() { c.captureStill(gen, cb) })
	return nil
}

// captureStill runs on the serial queue.
func (c *Controller) captureStill(gen uint64, cb func(*Still, error)) {
	c.mu.Lock()
	if c.gen != gen || (c.state != Scanning && c.state != Frozen) {
		c.stillPending = false
		st := c.state
		c.mu.Unlock()
		c.deliverStill(cb, nil, fmt.Errorf("%w: session %s", ErrCaptureFailed, st))
		return
	}
	prior := c.state
	c.stillPrior = prior
	c.setStateLocked(CapturingStill)
	c.mu.Unlock()

	still, err := c.session.still()

	c.mu.Lock()
	c.stillPending = false
	if c.gen == gen && c.state == CapturingStill {
		c.setStateLocked(prior)
	}
	c.mu.Unlock()

	c.deliverStill(cb, still, err)
}

func (c *Controller) deliverStill(cb func(*Still, error), still *Still, err error) {
	if err != nil {
		metrics.Stills.WithLabelValues("failed").Inc()
		c.log.Warn("still capture", "error", err)
	} else {
		metrics.Stills.WithLabelValues("captured").Inc()
	}
	if cb != nil {
		c.ui.Dispatch(func() { cb(still, err) })
	}
}
