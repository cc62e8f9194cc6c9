// Package device resolves logical cameras to physical devices and answers
// capability queries without touching any session.
package device

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/permission"
)

// ErrNotAvailable is returned when no device matches the requested camera.
var ErrNotAvailable = errors.New("camera device not available")

// Resolver maps a logical camera to a physical device.
type Resolver struct {
	source capture.Source
}

// NewResolver creates a resolver over the given device source.
func NewResolver(source capture.Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the device for pos. It never falls back to the opposite
// camera. When several devices match, the primary one wins, then the lowest ID.
func (r *Resolver) Resolve(pos capture.Position) (capture.DeviceInfo, error) {
	devices, err := r.source.Devices()
	if err != nil {
		return capture.DeviceInfo{}, fmt.Errorf("enumerate devices: %w", err)
	}

	var matches []capture.DeviceInfo
	for _, d := range devices {
		if d.Position == pos {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return capture.DeviceInfo{}, fmt.Errorf("%s camera: %w", pos, ErrNotAvailable)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Primary != matches[j].Primary {
			return matches[i].Primary
		}
		return matches[i].ID < matches[j].ID
	})
	return matches[0], nil
}

// Devices lists every device the source knows about.
func (r *Resolver) Devices() ([]capture.DeviceInfo, error) {
	return r.source.Devices()
}

// Prober answers static capability questions.
type Prober struct {
	resolver *Resolver
	gate     *permission.Gate
}

// NewProber creates a prober. gate may be nil, in which case access is
// treated as authorized.
func NewProber(resolver *Resolver, gate *permission.Gate) *Prober {
	return &Prober{resolver: resolver, gate: gate}
}

func (p *Prober) status() permission.Status {
	if p.gate == nil {
		return permission.Authorized
	}
	return p.gate.Status()
}

// AnyCameraPresent reports whether at least one device exists and access is
// not restricted by policy.
func (p *Prober) AnyCameraPresent() bool {
	if p.status() == permission.Restricted {
		return false
	}
	devices, err := p.resolver.Devices()
	return err == nil && len(devices) > 0
}

// HasOppositeCamera reports whether the camera opposite current can be used.
func (p *Prober) HasOppositeCamera(current capture.Position) bool {
	if p.ScanningProhibited() {
		return false
	}
	_, err := p.resolver.Resolve(current.Opposite())
	return err == nil
}

// ScanningProhibited reports whether the user or policy denied camera access.
func (p *Prober) ScanningProhibited() bool {
	st := p.status()
	return st == permission.Denied || st == permission.Restricted
}

// ScanningAvailable reports whether a camera exists and may be used.
func (p *Prober) ScanningAvailable() bool {
	return p.AnyCameraPresent() && !p.ScanningProhibited()
}

// HasTorch reports whether the device has a torch.
func (p *Prober) HasTorch(info capture.DeviceInfo) bool {
	return info.HasTorch()
}
