package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/config"
	"github.com/ayusman/codescan/internal/scanner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scanner with its HTTP API",
	Long: `Start the camera scanner and an HTTP server that controls it.

The server provides the following endpoints:
  GET  /api/scanner           - Scanner state and capabilities
  POST /api/scanner/{op}      - start, stop, flip, camera, torch, region, focus,
                                freeze, unfreeze, still, permission
  GET  /api/scans             - Scan history
  /api/bindings               - Plugin actions bound to symbologies
  GET  /api/stream            - MJPEG preview
  GET  /api/results           - Live results over websocket
  GET  /metrics               - Prometheus metrics

Examples:
  codescan serve
  codescan serve --addr 127.0.0.1:9090 --camera front
  codescan serve --idle`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cmd)
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "address to listen on")
	flags.String("static-dir", "", "directory of static files to serve at /")
	flags.String("camera", "back", "camera to start with (back, front)")
	flags.Bool("idle", false, "do not start scanning until requested over the API")
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg := globalConfig
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	h, err := newHost(cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer h.Close()

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		h.log.Info("serving static files", "dir", staticDir)
	}
	srv := h.server(staticDir)

	if idle, _ := cmd.Flags().GetBool("idle"); !idle {
		if err := h.app.StartWith(cfg.CameraPosition()); err != nil {
			if !errors.Is(err, scanner.ErrDeviceNotAvailable) && !errors.Is(err, scanner.ErrPermissionDenied) {
				return err
			}
			h.log.Warn("scanner not started", "camera", cfg.CameraPosition(), "error", err)
		}
	}

	return srv.Serve(ctx, cfg.Server.Addr)
}

// applyFlags overrides the loaded configuration with the command-local
// flags that were set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("static-dir") {
		cfg.Server.StaticDir, _ = flags.GetString("static-dir")
	}
	if flags.Changed("camera") {
		name, _ := flags.GetString("camera")
		if _, err := capture.ParsePosition(name); err != nil {
			return err
		}
		cfg.Scanner.Camera = name
	}
	return nil
}
