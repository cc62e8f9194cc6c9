// Package dispatch delivers recognized-code batches to the host.
package dispatch

import (
	"sync"
	"time"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/decoder"
	"github.com/ayusman/codescan/internal/metrics"
	"github.com/ayusman/codescan/internal/queue"
)

// Batch is the set of codes recognized in one frame.
type Batch struct {
	Seq        uint64           `json:"seq"`
	CapturedAt time.Time        `json:"captured_at"`
	Camera     capture.Position `json:"camera"`
	Codes      []decoder.Code   `json:"codes"`
}

// ResultFunc receives delivered batches on the UI executor.
type ResultFunc func(Batch)

// Dispatcher filters batches and forwards them on the UI executor.
// Submit must be called from a single goroutine so that delivery order
// matches capture order.
type Dispatcher struct {
	ui     queue.Executor
	filter map[decoder.Symbology]bool

	mu     sync.Mutex
	fn     ResultFunc
	paused bool
}

// New creates a dispatcher. A nil or empty symbology list passes every
// supported symbology.
func New(ui queue.Executor, symbologies []decoder.Symbology) *Dispatcher {
	d := &Dispatcher{ui: ui}
	if len(symbologies) > 0 {
		d.filter = make(map[decoder.Symbology]bool, len(symbologies))
		for _, s := range symbologies {
			d.filter[s] = true
		}
	}
	return d
}

// Symbologies returns the configured filter, or nil for all.
func (d *Dispatcher) Symbologies() []decoder.Symbology {
	if d.filter == nil {
		return nil
	}
	var out []decoder.Symbology
	for _, s := range decoder.AllSymbologies() {
		if d.filter[s] {
			out = append(out, s)
		}
	}
	return out
}

// SetResultFunc replaces the host callback.
func (d *Dispatcher) SetResultFunc(fn ResultFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = fn
}

// Pause stops delivery until Resume.
func (d *Dispatcher) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
}

// Resume restarts delivery.
func (d *Dispatcher) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = false
}

// Paused reports whether delivery is paused.
func (d *Dispatcher) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Submit filters b and schedules delivery. It reports whether the batch was
// handed to the UI executor. Batches with no matching codes are dropped.
func (d *Dispatcher) Submit(b Batch) bool {
	d.mu.Lock()
	fn, paused := d.fn, d.paused
	d.mu.Unlock()

	if paused {
		metrics.Batches.WithLabelValues("paused").Inc()
		return false
	}

	b.Codes = d.keep(b.Codes)
	if len(b.Codes) == 0 {
		metrics.Batches.WithLabelValues("empty").Inc()
		return false
	}
	if fn == nil {
		return false
	}

	metrics.Batches.WithLabelValues("delivered").Inc()
	for _, c := range b.Codes {
		metrics.CodesDecoded.WithLabelValues(string(c.Symbology)).Inc()
	}
	d.ui.Dispatch(func() { fn(b) })
	return true
}

func (d *Dispatcher) keep(codes []decoder.Code) []decoder.Code {
	if d.filter == nil {
		return codes
	}
	out := make([]decoder.Code, 0, len(codes))
	for _, c := range codes {
		if d.filter[c.Symbology] {
			out = append(out, c)
		}
	}
	return out
}
