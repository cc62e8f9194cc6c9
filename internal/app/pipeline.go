package app

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/codescan/internal/decoder"
	"github.com/ayusman/codescan/internal/dispatch"
	"github.com/ayusman/codescan/internal/metrics"
	"github.com/ayusman/codescan/internal/plugin"
	"github.com/ayusman/codescan/internal/store"
)

// handleBatch runs on the UI queue for every delivered batch.
//
// Pipeline logic:
//  1. Notify listeners with the full batch
//  2. Drop codes seen within the repeat interval
//  3. Record new codes in the scan history
//  4. Queue bound plugin actions off the UI queue
func (a *App) handleBatch(b dispatch.Batch) {
	a.mu.RLock()
	listeners := make([]func(dispatch.Batch), 0, len(a.listeners))
	for _, fn := range a.listeners {
		listeners = append(listeners, fn)
	}
	a.mu.RUnlock()

	for _, fn := range listeners {
		fn(b)
	}

	for _, code := range a.fresh(b) {
		a.recordScan(b, code)
		code, camera := code, b.Camera.String()
		a.actions.Dispatch(func() { a.executeActions(code, camera) })
	}
}

// fresh returns the codes in b not seen within the repeat interval and
// remembers them. A negative interval disables suppression.
func (a *App) fresh(b dispatch.Batch) []decoder.Code {
	now := b.CapturedAt
	if now.IsZero() {
		now = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for key, at := range a.seen {
		if now.Sub(at) > a.config.RepeatInterval {
			delete(a.seen, key)
		}
	}

	var out []decoder.Code
	for _, code := range b.Codes {
		key := string(code.Symbology) + "\x00" + code.Payload
		if _, ok := a.seen[key]; ok && a.config.RepeatInterval > 0 {
			a.seen[key] = now
			continue
		}
		a.seen[key] = now
		out = append(out, code)
		c := code
		a.last = &c
	}
	return out
}

func (a *App) recordScan(b dispatch.Batch, code decoder.Code) {
	a.log.Info("code scanned", "symbology", code.Symbology, "payload", code.Payload, "seq", b.Seq)

	if a.config.Store == nil {
		return
	}
	err := a.config.Store.Scans().Create(&store.Scan{
		Symbology: string(code.Symbology),
		Payload:   code.Payload,
		Camera:    b.Camera.String(),
		FrameSeq:  b.Seq,
		ScannedAt: b.CapturedAt,
	})
	if err != nil {
		a.log.Error("failed to record scan", "error", err)
	}
}

// executeActions runs every enabled binding for the code's symbology.
// It runs on the actions queue so slow plugins never hold up delivery.
func (a *App) executeActions(code decoder.Code, camera string) {
	if a.config.Store == nil {
		return
	}

	bindings, err := a.config.Store.Bindings().ForSymbology(string(code.Symbology))
	if err != nil {
		a.log.Error("failed to load bindings", "symbology", code.Symbology, "error", err)
		return
	}

	for _, b := range bindings {
		a.executeBinding(b, code, camera)
	}
}

func (a *App) executeBinding(b *store.Binding, code decoder.Code, camera string) {
	logger := a.log.With("binding", b.ID, "plugin", b.PluginName, "action", b.ActionName)

	p, err := a.pluginMgr.Get(b.PluginName)
	if err != nil {
		if errors.Is(err, plugin.ErrPluginNotFound) {
			logger.Warn("bound plugin is not installed")
		}
		metrics.PluginExecutions.WithLabelValues(b.PluginName, "missing").Inc()
		return
	}
	if !p.Manifest.Supports(b.ActionName) {
		logger.Warn("plugin does not provide action")
		metrics.PluginExecutions.WithLabelValues(b.PluginName, "unsupported").Inc()
		return
	}
	if !acceptsSymbology(p.Manifest, code.Symbology) {
		metrics.PluginExecutions.WithLabelValues(b.PluginName, "skipped").Inc()
		return
	}

	resp, err := a.pluginExec.Execute(context.Background(), p, &plugin.Request{
		Action:    b.ActionName,
		Symbology: string(code.Symbology),
		Payload:   code.Payload,
		Camera:    camera,
		Config:    b.Config,
	})
	switch {
	case err != nil:
		logger.Error("plugin execution failed", "error", err)
		metrics.PluginExecutions.WithLabelValues(b.PluginName, "error").Inc()
	case !resp.Success:
		logger.Warn("plugin reported failure", "error", resp.Error)
		metrics.PluginExecutions.WithLabelValues(b.PluginName, "failed").Inc()
	default:
		logger.Debug("plugin executed")
		metrics.PluginExecutions.WithLabelValues(b.PluginName, "ok").Inc()
	}
}

// acceptsSymbology reports whether the manifest allows s. A manifest without
// symbologies accepts any.
func acceptsSymbology(m plugin.Manifest, s decoder.Symbology) bool {
	if len(m.Symbologies) == 0 {
		return true
	}
	for _, name := range m.Symbologies {
		if parsed, err := decoder.ParseSymbology(name); err == nil && parsed == s {
			return true
		}
	}
	return false
}

// Flush waits until every batch and action queued so far has been handled.
func (a *App) Flush() {
	a.ui.Flush()
	a.actions.Flush()
}
