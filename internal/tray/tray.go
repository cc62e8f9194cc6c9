// Package tray provides a system tray menu for the codescan scanner.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(scanning bool)
	onFlip     func()
	onTorch    func()
	onFreeze   func(frozen bool)
	onSettings func()
	onQuit     func()
	scanning   bool
	frozen     bool
	lastCode   string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuFreeze   *systray.MenuItem
	menuLastCode *systray.MenuItem
}

// New creates a new Tray. Scanning starts out stopped.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback invoked when scanning is started or stopped.
func (t *Tray) OnToggle(fn func(scanning bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnFlip sets the callback invoked when the camera flip item is clicked.
func (t *Tray) OnFlip(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFlip = fn
}

// OnTorch sets the callback invoked when the torch item is clicked.
func (t *Tray) OnTorch(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTorch = fn
}

// OnFreeze sets the callback invoked when the preview is frozen or resumed.
func (t *Tray) OnFreeze(fn func(frozen bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFreeze = fn
}

// OnSettings sets the callback invoked when the settings item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback invoked when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Codescan")
	systray.SetTooltip("Codescan barcode scanner")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.scanning), "Start or stop scanning")
	menuFlip := systray.AddMenuItem("Flip Camera", "Switch between front and back cameras")
	menuTorch := systray.AddMenuItem("Toggle Torch", "Turn the torch on or off")
	t.menuFreeze = systray.AddMenuItem(freezeTitle(t.frozen), "Hold the current frame")
	systray.AddSeparator()

	t.menuLastCode = systray.AddMenuItem(lastCodeTitle(t.lastCode), "Last scanned code")
	t.menuLastCode.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Codescan")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuFlip.ClickedCh:
				t.handle(func() func() { return t.onFlip })
			case <-menuTorch.ClickedCh:
				t.handle(func() func() { return t.onTorch })
			case <-t.menuFreeze.ClickedCh:
				t.handleFreeze()
			case <-menuSettings.ClickedCh:
				t.handle(func() func() { return t.onSettings })
			case <-menuQuit.ClickedCh:
				t.handle(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the scanning state and notifies the toggle callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.scanning = !t.scanning
	scanning := t.scanning
	if !scanning {
		t.frozen = false
	}
	t.refreshLocked()
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(scanning)
	}
}

// handleFreeze flips the frozen state while scanning.
func (t *Tray) handleFreeze() {
	t.mu.Lock()
	if !t.scanning {
		t.mu.Unlock()
		return
	}
	t.frozen = !t.frozen
	frozen := t.frozen
	t.refreshLocked()
	callback := t.onFreeze
	t.mu.Unlock()

	if callback != nil {
		callback(frozen)
	}
}

// handle runs the callback returned by pick outside the lock.
func (t *Tray) handle(pick func() func()) {
	t.mu.RLock()
	callback := pick()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetScanning syncs the menu with the scanner after it starts or stops on
// its own.
func (t *Tray) SetScanning(scanning bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scanning = scanning
	if !scanning {
		t.frozen = false
	}
	t.refreshLocked()
}

// SetLastCode updates the last code display in the menu.
func (t *Tray) SetLastCode(code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastCode = code
	if t.menuLastCode != nil {
		t.menuLastCode.SetTitle(lastCodeTitle(code))
	}
}

// LastCode returns the code shown in the menu.
func (t *Tray) LastCode() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastCode
}

// IsScanning returns the scanning state shown in the menu.
func (t *Tray) IsScanning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scanning
}

// IsFrozen returns the frozen state shown in the menu.
func (t *Tray) IsFrozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

func (t *Tray) refreshLocked() {
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(t.scanning))
	}
	if t.menuFreeze != nil {
		t.menuFreeze.SetTitle(freezeTitle(t.frozen))
	}
}

func toggleTitle(scanning bool) string {
	if scanning {
		return "● Scanning"
	}
	return "○ Stopped"
}

func freezeTitle(frozen bool) string {
	if frozen {
		return "Resume Preview"
	}
	return "Freeze Preview"
}

// maxCodeTitle bounds the payload shown in the menu.
const maxCodeTitle = 32

func lastCodeTitle(code string) string {
	if code == "" {
		return "Last: none"
	}
	r := []rune(code)
	if len(r) > maxCodeTitle {
		code = string(r[:maxCodeTitle-1]) + "…"
	}
	return "Last: " + code
}
