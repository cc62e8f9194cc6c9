// Package app wires the scanner controller into the desktop host: scan
// history, plugin actions bound to symbologies, and result listeners.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/decoder"
	"github.com/ayusman/codescan/internal/dispatch"
	"github.com/ayusman/codescan/internal/focus"
	"github.com/ayusman/codescan/internal/permission"
	"github.com/ayusman/codescan/internal/plugin"
	"github.com/ayusman/codescan/internal/preview"
	"github.com/ayusman/codescan/internal/queue"
	"github.com/ayusman/codescan/internal/scanner"
	"github.com/ayusman/codescan/internal/store"
)

// Host defaults.
const (
	// DefaultRepeatInterval suppresses the same code being recorded again
	// while it stays in view.
	DefaultRepeatInterval = 2 * time.Second
	// DefaultPluginTimeout bounds a single plugin run.
	DefaultPluginTimeout = 5 * time.Second
)

// Config holds configuration options for the application.
type Config struct {
	Store      *store.Store
	PluginDir  string
	Source     capture.Source
	Surface    *preview.Surface
	Decoder    decoder.Decoder
	Authorizer permission.Authorizer

	Symbologies    []decoder.Symbology
	Camera         capture.Position
	FPS            int
	FillMode       focus.FillMode
	FrameSize      focus.Size
	TryHarder      bool
	RepeatInterval time.Duration
	PluginTimeout  time.Duration

	// DisableTapToFocus turns off SetFocusPoint. Tap to focus is on by default.
	DisableTapToFocus bool

	Logger *slog.Logger
}

// App is the host application around a scanner controller.
type App struct {
	config     Config
	log        *slog.Logger
	ui         *queue.Serial
	actions    *queue.Serial
	gate       *permission.Gate
	scanner    *scanner.Controller
	surface    *preview.Surface
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor

	mu        sync.RWMutex
	listeners map[int]func(dispatch.Batch)
	nextID    int
	seen      map[string]time.Time
	last      *decoder.Code
	lastErr   error
}

// New creates the application. The scanner is idle until Start.
func New(config Config) (*App, error) {
	if config.Source == nil {
		return nil, errors.New("app: camera source is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Surface == nil {
		config.Surface = preview.NewSurface(float64(capture.DefaultWidth), float64(capture.DefaultHeight))
	}
	if config.Authorizer == nil {
		config.Authorizer = &permission.Static{Current: permission.Authorized}
	}
	if config.RepeatInterval == 0 {
		config.RepeatInterval = DefaultRepeatInterval
	}
	if config.PluginTimeout <= 0 {
		config.PluginTimeout = DefaultPluginTimeout
	}

	logger := config.Logger.With("component", "app")
	a := &App{
		config:     config,
		log:        logger,
		ui:         queue.NewSerial("ui", logger),
		actions:    queue.NewSerial("actions", logger),
		surface:    config.Surface,
		pluginMgr:  plugin.NewManager(config.PluginDir, config.Logger),
		pluginExec: plugin.NewExecutor(config.PluginTimeout),
		listeners:  make(map[int]func(dispatch.Batch)),
		seen:       make(map[string]time.Time),
	}
	a.gate = permission.NewGate(config.Authorizer, a.ui, config.Logger)

	ctrl, err := scanner.New(scanner.Config{
		Surface:     config.Surface,
		Source:      config.Source,
		Gate:        a.gate,
		UI:          a.ui,
		Decoder:     config.Decoder,
		Symbologies: config.Symbologies,
		Camera:      config.Camera,
		FPS:         config.FPS,
		FillMode:    config.FillMode,
		FrameSize:   config.FrameSize,
		TryHarder:   config.TryHarder,
		Logger:      config.Logger,
	})
	if err != nil {
		a.actions.Close()
		a.ui.Close()
		return nil, fmt.Errorf("create scanner: %w", err)
	}
	ctrl.SetAllowTapToFocus(!config.DisableTapToFocus)
	ctrl.OnStarted(func() { a.log.Info("scanning started", "camera", ctrl.Camera()) })
	ctrl.OnStartFailed(a.recordError)
	ctrl.OnError(a.recordError)
	a.scanner = ctrl

	return a, nil
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// Start begins scanning with the selected camera. Starting while already
// started is not an error.
func (a *App) Start() error {
	err := a.StartWith(a.scanner.Camera())
	if errors.Is(err, scanner.ErrAlreadyStarted) {
		return nil
	}
	return err
}

// StartWith begins scanning with pos, recording results through the host
// pipeline.
func (a *App) StartWith(pos capture.Position) error {
	return a.scanner.Start(pos, a.handleBatch)
}

// Stop ends scanning. The app can be started again.
func (a *App) Stop() {
	a.scanner.Stop()
}

// SetEnabled starts or stops scanning.
func (a *App) SetEnabled(enabled bool) error {
	if enabled {
		return a.Start()
	}
	a.Stop()
	return nil
}

// IsEnabled reports whether scanning is running.
func (a *App) IsEnabled() bool {
	return a.scanner.IsScanning()
}

// Subscribe registers fn for every delivered batch. fn runs on the UI queue
// and must not block. The returned func removes it.
func (a *App) Subscribe(fn func(dispatch.Batch)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// LastCode returns the most recently recorded code.
func (a *App) LastCode() (decoder.Code, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return decoder.Code{}, false
	}
	return *a.last, true
}

// LastError returns the most recent asynchronous scanner failure.
func (a *App) LastError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

func (a *App) recordError(err error) {
	a.log.Error("scanner error", "error", err)
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
}

// Scanner returns the session controller.
func (a *App) Scanner() *scanner.Controller {
	return a.scanner
}

// Surface returns the preview surface.
func (a *App) Surface() *preview.Surface {
	return a.surface
}

// Store returns the database, or nil when history is disabled.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// UI returns the queue host callbacks run on.
func (a *App) UI() queue.Executor {
	return a.ui
}

// Close stops scanning and releases the controller and queues.
func (a *App) Close() error {
	err := a.scanner.Close()
	a.ui.Close()
	a.actions.Close()
	return err
}
