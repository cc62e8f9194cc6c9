package scanner

import "fmt"

// FreezeCapture holds the last delivered frame and pauses result delivery.
// It returns immediately; the state becomes Frozen shortly after.
func (c *Controller) FreezeCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.effectiveLocked() != Scanning {
		return fmt.Errorf("freeze in %s: %w", c.state, ErrInvalidState)
	}
	gen := c.gen
	c.serial.Dispatch(func() { c.setFrozen(gen, true) })
	return nil
}

// UnfreezeCapture resumes the live preview and result delivery.
// It returns immediately; the state becomes Scanning shortly after.
func (c *Controller) UnfreezeCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.effectiveLocked() != Frozen {
		return fmt.Errorf("unfreeze in %s: %w", c.state, ErrInvalidState)
	}
	gen := c.gen
	c.serial.Dispatch(func() { c.setFrozen(gen, false) })
	return nil
}

// setFrozen runs on the serial queue.
func (c *Controller) setFrozen(gen uint64, frozen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}
	from, to := Scanning, Frozen
	if !frozen {
		from, to = Frozen, Scanning
	}
	if c.state != from {
		return
	}

	c.session.setFrozen(frozen)
	if frozen {
		c.dispatcher.Pause()
	} else {
		c.dispatcher.Resume()
	}
	c.setStateLocked(to)
}
