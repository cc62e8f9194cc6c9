package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera(testDevice(), []*gocv.Mat{&frame1, &frame2}, false)

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	f1, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	f1.Close()

	f2, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	f2.Close()

	// Third read should fail (no loop)
	if _, err = cam.ReadFrame(); err == nil {
		t.Error("expected error after all frames consumed")
	}
}

func TestMockCamera_Loop(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera(testDevice(), []*gocv.Mat{&frame}, true)
	cam.Open()
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		f.Close()
	}
}

func TestMockCamera_RecordsHardwareCalls(t *testing.T) {
	info := testDevice()
	info.TorchModes = []TorchMode{TorchOn}
	info.FocusPointOfInterest = true

	cam := NewMockCamera(info, nil, true)

	if err := cam.SetTorchMode(TorchOn); err != nil {
		t.Fatalf("SetTorchMode(on) error = %v", err)
	}
	if cam.Torch() != TorchOn {
		t.Errorf("Torch() = %s, want on", cam.Torch())
	}
	if err := cam.SetTorchMode(TorchAuto); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SetTorchMode(auto) error = %v, want ErrUnsupported", err)
	}

	if err := cam.SetFocusPoint(0.25, 0.75); err != nil {
		t.Fatalf("SetFocusPoint() error = %v", err)
	}
	if pts := cam.FocusPoints(); len(pts) != 1 || pts[0] != (Point2{0.25, 0.75}) {
		t.Errorf("FocusPoints() = %v", pts)
	}
	if err := cam.SetExposurePoint(0.1, 0.1); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SetExposurePoint() error = %v, want ErrUnsupported", err)
	}
}

func TestMockCamera_OpenCloseCounts(t *testing.T) {
	cam := NewMockCamera(testDevice(), nil, true)

	cam.FailOpen(errors.New("busy"))
	if err := cam.Open(); err == nil {
		t.Fatal("Open() should fail while FailOpen is set")
	}
	cam.FailOpen(nil)

	cam.Open()
	cam.Close()
	cam.Close()

	if cam.OpenCount() != 1 || cam.CloseCount() != 1 {
		t.Errorf("opens = %d, closes = %d, want 1 and 1", cam.OpenCount(), cam.CloseCount())
	}
}

func TestMockSource(t *testing.T) {
	back := DeviceInfo{ID: "back", Position: PositionBack}
	front := DeviceInfo{ID: "front", Position: PositionFront}
	src := NewMockSource(nil, back, front)

	devices, err := src.Devices()
	if err != nil || len(devices) != 2 {
		t.Fatalf("Devices() = %v, %v", devices, err)
	}

	cam, err := src.Open(front)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if cam != src.Camera("front") {
		t.Error("Open() should return the registered mock camera")
	}

	src.FailDevices(errors.New("bus error"))
	if _, err := src.Devices(); err == nil {
		t.Error("Devices() should fail after FailDevices")
	}
}
