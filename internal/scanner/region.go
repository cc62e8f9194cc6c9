package scanner

import (
	"fmt"

	"github.com/ayusman/codescan/internal/focus"
)

// SetScanRegion restricts recognition to r, normalized to the preview
// surface. Only valid while scanning.
func (c *Controller) SetScanRegion(r focus.Rect) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.effectiveLocked() != Scanning {
		return fmt.Errorf("set scan region in %s: %w", c.state, ErrInvalidState)
	}
	if !r.Normalized() {
		return fmt.Errorf("%+v: %w", r, ErrInvalidScanRegion)
	}

	c.region = r
	gen := c.gen
	c.serial.Dispatch(func() {
		if c.current(gen) {
			c.session.setRegion(r)
		}
	})
	return nil
}

// ScanRegion returns the active scan region. The whole surface is reported
// when no region was set.
func (c *Controller) ScanRegion() focus.Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.region.IsZero() {
		return focus.Unit
	}
	return c.region
}

// SetAllowTapToFocus enables or disables SetFocusPoint. Enabled by default.
func (c *Controller) SetAllowTapToFocus(allow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowTap = allow
}

// AllowTapToFocus reports whether tap to focus is enabled.
func (c *Controller) AllowTapToFocus() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allowTap
}

// SetFocusPoint focuses and exposes on the scene location under p, given in
// preview surface coordinates. The tap feedback hook fires with p once the
// attempt is made, whether or not the device supports a point of interest.
func (c *Controller) SetFocusPoint(p focus.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.allowTap {
		return fmt.Errorf("tap to focus disabled: %w", ErrInvalidState)
	}
	if c.effectiveLocked() != Scanning {
		return fmt.Errorf("set focus point in %s: %w", c.state, ErrInvalidState)
	}

	gen := c.gen
	c.serial.Dispatch(func() { c.applyFocus(gen, p) })
	return nil
}

// applyFocus runs on the serial queue.
func (c *Controller) applyFocus(gen uint64, p focus.Point) {
	if c.current(gen) {
		if cam := c.session.currentInput(); cam != nil {
			geo := focus.Geometry{
				Bounds: c.cfg.Surface.Bounds(),
				Frame:  c.session.frameSize(),
				Mode:   c.cfg.FillMode,
			}
			poi := geo.PointOfInterest(p)
			info := cam.Info()

			if info.FocusPointOfInterest {
				if err := cam.SetFocusPoint(poi.X, poi.Y); err != nil {
					c.log.Warn("focus point", "error", err)
				}
			}
			if info.ExposurePointOfInterest {
				if err := cam.SetExposurePoint(poi.X, poi.Y); err != nil {
					c.log.Warn("exposure point", "error", err)
				}
			}
			c.log.Debug("focus", "tap", p, "poi", poi)
		}
	}

	c.mu.Lock()
	cb := c.onTapToFocus
	c.mu.Unlock()
	if cb != nil {
		c.ui.Dispatch(func() { cb(p) })
	}
}
