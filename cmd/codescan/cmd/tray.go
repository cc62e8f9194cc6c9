package cmd

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/codescan/internal/dispatch"
	"github.com/ayusman/codescan/internal/scanner"
	"github.com/ayusman/codescan/internal/tray"
)

var trayCmd = &cobra.Command{
	Use:   "tray",
	Short: "Run the scanner from the system tray",
	Long: `Run the scanner with a system tray menu to start and stop scanning,
flip the camera, toggle the torch and freeze the preview. The HTTP API
runs alongside and "Open Settings..." opens it in the browser.`,
	RunE: runTray,
}

func init() {
	flags := trayCmd.Flags()
	flags.String("addr", "127.0.0.1:8080", "address of the settings server")
	flags.String("camera", "back", "camera to start with (back, front)")
}

func runTray(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	h, err := newHost(cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer h.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv := h.server(findWebDir(cfg.DataDir))
	go func() {
		if err := srv.Serve(ctx, cfg.Server.Addr); err != nil {
			h.log.Error("settings server failed", "error", err)
		}
	}()

	t := tray.New()
	ctrl := h.app.Scanner()

	t.OnToggle(func(scanning bool) {
		if err := h.app.SetEnabled(scanning); err != nil {
			h.log.Warn("toggle scanning", "error", err)
			t.SetScanning(false)
		}
	})
	t.OnFlip(func() {
		if err := ctrl.FlipCamera(); err != nil {
			h.log.Warn("flip camera", "error", err)
		}
	})
	t.OnTorch(ctrl.ToggleTorch)
	t.OnFreeze(func(frozen bool) {
		var err error
		if frozen {
			err = ctrl.FreezeCapture()
		} else {
			err = ctrl.UnfreezeCapture()
		}
		if err != nil {
			h.log.Warn("freeze preview", "error", err)
		}
	})
	t.OnSettings(func() {
		if err := openBrowser(settingsURL(cfg.Server.Addr)); err != nil {
			h.log.Warn("open settings", "error", err)
		}
	})
	t.OnQuit(cancel)

	ctrl.OnStateChange(func(st scanner.State) {
		switch {
		case st == scanner.Idle:
			t.SetScanning(false)
		case st.Active():
			t.SetScanning(true)
		}
	})
	unsubscribe := h.app.Subscribe(func(b dispatch.Batch) {
		if len(b.Codes) > 0 {
			t.SetLastCode(b.Codes[0].Payload)
		}
	})
	defer unsubscribe()

	t.Run()
	return nil
}

// settingsURL turns a listen address into a browsable URL.
func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	if err := c.Start(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}
