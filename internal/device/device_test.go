package device

import (
	"errors"
	"testing"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/permission"
	"github.com/ayusman/codescan/internal/queue"
)

func back(id string, primary bool) capture.DeviceInfo {
	return capture.DeviceInfo{ID: id, Name: id, Position: capture.PositionBack, Primary: primary}
}

func front(id string) capture.DeviceInfo {
	return capture.DeviceInfo{ID: id, Name: id, Position: capture.PositionFront}
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		devices []capture.DeviceInfo
		pos     capture.Position
		want    string
		wantErr error
	}{
		{
			name:    "single match",
			devices: []capture.DeviceInfo{back("wide", false), front("selfie")},
			pos:     capture.PositionFront,
			want:    "selfie",
		},
		{
			name:    "primary preferred",
			devices: []capture.DeviceInfo{back("a-tele", false), back("b-wide", true)},
			pos:     capture.PositionBack,
			want:    "b-wide",
		},
		{
			name:    "lowest id without primary",
			devices: []capture.DeviceInfo{back("cam2", false), back("cam1", false)},
			pos:     capture.PositionBack,
			want:    "cam1",
		},
		{
			name:    "no fallback to opposite",
			devices: []capture.DeviceInfo{back("wide", true)},
			pos:     capture.PositionFront,
			wantErr: ErrNotAvailable,
		},
		{
			name:    "no devices",
			pos:     capture.PositionBack,
			wantErr: ErrNotAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(capture.NewMockSource(nil, tt.devices...))
			got, err := r.Resolve(tt.pos)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.ID != tt.want {
				t.Errorf("Resolve() = %s, want %s", got.ID, tt.want)
			}
		})
	}
}

func TestResolver_EnumerationError(t *testing.T) {
	src := capture.NewMockSource(nil, back("wide", true))
	src.FailDevices(errors.New("bus error"))

	_, err := NewResolver(src).Resolve(capture.PositionBack)
	if err == nil || errors.Is(err, ErrNotAvailable) {
		t.Errorf("Resolve() error = %v, want enumeration error", err)
	}
}

func newGate(t *testing.T, st permission.Status) *permission.Gate {
	t.Helper()
	ui := queue.NewSerial("ui", nil)
	t.Cleanup(ui.Close)
	return permission.NewGate(&permission.Static{Current: st}, ui, nil)
}

func TestProber(t *testing.T) {
	devices := []capture.DeviceInfo{back("wide", true), front("selfie")}

	tests := []struct {
		name       string
		devices    []capture.DeviceInfo
		status     permission.Status
		present    bool
		prohibited bool
		opposite   bool
		available  bool
	}{
		{"authorized", devices, permission.Authorized, true, false, true, true},
		{"not determined", devices, permission.NotDetermined, true, false, true, true},
		{"denied", devices, permission.Denied, true, true, false, false},
		{"restricted", devices, permission.Restricted, false, true, false, false},
		{"single camera", devices[:1], permission.Authorized, true, false, false, true},
		{"no camera", nil, permission.Authorized, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProber(NewResolver(capture.NewMockSource(nil, tt.devices...)), newGate(t, tt.status))

			if got := p.AnyCameraPresent(); got != tt.present {
				t.Errorf("AnyCameraPresent() = %v, want %v", got, tt.present)
			}
			if got := p.ScanningProhibited(); got != tt.prohibited {
				t.Errorf("ScanningProhibited() = %v, want %v", got, tt.prohibited)
			}
			if got := p.HasOppositeCamera(capture.PositionBack); got != tt.opposite {
				t.Errorf("HasOppositeCamera() = %v, want %v", got, tt.opposite)
			}
			if got := p.ScanningAvailable(); got != tt.available {
				t.Errorf("ScanningAvailable() = %v, want %v", got, tt.available)
			}
		})
	}
}

func TestProber_HasTorch(t *testing.T) {
	p := NewProber(NewResolver(capture.NewMockSource(nil)), nil)

	lit := back("wide", true)
	lit.TorchModes = []capture.TorchMode{capture.TorchOn}

	if !p.HasTorch(lit) {
		t.Error("expected torch on device with torch modes")
	}
	if p.HasTorch(back("plain", true)) {
		t.Error("expected no torch on device without torch modes")
	}
}
