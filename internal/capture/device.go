package capture

import "fmt"

// Position selects a logical camera.
type Position int

const (
	// PositionBack is the camera facing away from the user.
	PositionBack Position = iota
	// PositionFront is the camera facing the user.
	PositionFront
)

// String returns the configuration name of the position.
func (p Position) String() string {
	if p == PositionFront {
		return "front"
	}
	return "back"
}

// Opposite returns the other logical camera.
func (p Position) Opposite() Position {
	if p == PositionFront {
		return PositionBack
	}
	return PositionFront
}

// ParsePosition converts a configuration name into a Position.
func ParsePosition(s string) (Position, error) {
	switch s {
	case "back", "rear", "":
		return PositionBack, nil
	case "front", "user":
		return PositionFront, nil
	default:
		return PositionBack, fmt.Errorf("unknown camera position %q", s)
	}
}

// TorchMode is the state of a device torch.
type TorchMode int

const (
	TorchOff TorchMode = iota
	TorchOn
	TorchAuto
)

// String returns the configuration name of the torch mode.
func (m TorchMode) String() string {
	switch m {
	case TorchOn:
		return "on"
	case TorchAuto:
		return "auto"
	default:
		return "off"
	}
}

// ParseTorchMode converts a configuration name into a TorchMode.
func ParseTorchMode(s string) (TorchMode, error) {
	switch s {
	case "off":
		return TorchOff, nil
	case "on":
		return TorchOn, nil
	case "auto":
		return TorchAuto, nil
	default:
		return TorchOff, fmt.Errorf("unknown torch mode %q", s)
	}
}

// DeviceInfo describes a physical capture device and its capabilities.
type DeviceInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Index    int      `json:"index"`
	Position Position `json:"position"`
	// Primary marks the platform's default device for its position.
	Primary bool `json:"primary"`

	// TorchModes lists the non-off torch modes the device supports.
	// An empty list means the device has no torch.
	TorchModes []TorchMode `json:"torch_modes,omitempty"`

	FocusPointOfInterest    bool `json:"focus_point_of_interest"`
	ExposurePointOfInterest bool `json:"exposure_point_of_interest"`
	AutoFocus               bool `json:"auto_focus"`
}

// HasTorch reports whether the device has a torch at all.
func (d DeviceInfo) HasTorch() bool {
	return len(d.TorchModes) > 0
}

// SupportsTorchMode reports whether the device can be put into mode.
// Off is supported by every device that has a torch.
func (d DeviceInfo) SupportsTorchMode(mode TorchMode) bool {
	if !d.HasTorch() {
		return false
	}
	if mode == TorchOff {
		return true
	}
	for _, m := range d.TorchModes {
		if m == mode {
			return true
		}
	}
	return false
}

// MarshalText encodes the position by name.
func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a position name.
func (p *Position) UnmarshalText(b []byte) error {
	v, err := ParsePosition(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText encodes the torch mode by name.
func (m TorchMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a torch mode name.
func (m *TorchMode) UnmarshalText(b []byte) error {
	v, err := ParseTorchMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
