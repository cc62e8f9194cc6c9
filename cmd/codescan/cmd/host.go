package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/codescan/internal/app"
	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/config"
	"github.com/ayusman/codescan/internal/focus"
	"github.com/ayusman/codescan/internal/log"
	"github.com/ayusman/codescan/internal/permission"
	"github.com/ayusman/codescan/internal/preview"
	"github.com/ayusman/codescan/internal/server"
	"github.com/ayusman/codescan/internal/store"
)

// host is the running application with its database.
type host struct {
	cfg   *config.Config
	store *store.Store
	app   *app.App
	log   *slog.Logger
}

// newHost opens the database, builds the capture source from the configured
// devices and creates the application.
func newHost(cfg *config.Config, in io.Reader, out io.Writer) (*host, error) {
	logger := log.L()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	devices, err := cfg.CaptureDevices()
	if err != nil {
		st.Close()
		return nil, err
	}

	a, err := app.New(app.Config{
		Store:             st,
		PluginDir:         cfg.PluginDir(),
		Source:            capture.NewGoCVSource(devices, cfg.Scanner.Width, cfg.Scanner.Height),
		Surface:           preview.NewSurface(cfg.Scanner.PreviewWidth, cfg.Scanner.PreviewHeight),
		Authorizer:        authorizerFor(cfg, st, in, out),
		Symbologies:       cfg.SymbologyFilter(),
		Camera:            cfg.CameraPosition(),
		FPS:               cfg.Scanner.FPS,
		FillMode:          cfg.Fill(),
		FrameSize:         focus.Size{Width: float64(cfg.Scanner.Width), Height: float64(cfg.Scanner.Height)},
		TryHarder:         cfg.Scanner.TryHarder,
		RepeatInterval:    cfg.Scanner.RepeatInterval,
		PluginTimeout:     cfg.Plugins.Timeout,
		DisableTapToFocus: !cfg.Scanner.AllowTapToFocus,
		Logger:            logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	if err := a.DiscoverPlugins(); err != nil {
		logger.Warn("plugin discovery failed", "dir", cfg.PluginDir(), "error", err)
	}

	return &host{cfg: cfg, store: st, app: a, log: logger}, nil
}

// server builds the HTTP front end for the host.
func (h *host) server(staticDir string) *server.Server {
	return server.New(server.Config{
		StaticDir: staticDir,
		Store:     h.store,
		Session:   h.app,
		Surface:   h.app.Surface(),
		Feed:      h.app,
		Plugins:   h.app.PluginManager(),
		StreamFPS: h.cfg.Server.StreamFPS,
		Metrics:   h.cfg.Server.Metrics,
		Logger:    h.log,
	})
}

// Close stops scanning and closes the database.
func (h *host) Close() {
	if err := h.app.Close(); err != nil {
		h.log.Warn("close scanner", "error", err)
	}
	if err := h.store.Close(); err != nil {
		h.log.Warn("close store", "error", err)
	}
}

// authorizerFor maps the permission mode to an authorizer. The prompt mode
// asks once on the terminal and remembers the answer in the settings table.
func authorizerFor(cfg *config.Config, st *store.Store, in io.Reader, out io.Writer) permission.Authorizer {
	switch cfg.Scanner.Permission {
	case config.PermissionDenied:
		return &permission.Static{Current: permission.Denied}
	case config.PermissionPrompt:
		return permission.NewPersistent(st, terminalPrompt(in, out))
	default:
		return &permission.Static{Current: permission.Authorized}
	}
}

func terminalPrompt(in io.Reader, out io.Writer) permission.PromptFunc {
	return func(ctx context.Context) (bool, error) {
		fmt.Fprint(out, "Allow codescan to use the camera? [y/N] ")

		answer := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			line, err := bufio.NewReader(in).ReadString('\n')
			if err != nil && line == "" {
				errCh <- err
				return
			}
			answer <- line
		}()

		select {
		case line := <-answer:
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				return true, nil
			default:
				return false, nil
			}
		case err := <-errCh:
			return false, err
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// findWebDir searches for a web directory in common locations.
// It checks: "web", "../web", "../../web", and <data_dir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
