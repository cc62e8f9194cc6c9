// Package permission caches the camera authorization decision and performs
// the user-facing request at most once per process.
package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/codescan/internal/queue"
)

// Status is the camera authorization state reported by the platform.
type Status int

const (
	NotDetermined Status = iota
	Authorized
	Denied
	Restricted
)

// String returns the configuration name of the status.
func (s Status) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	case Restricted:
		return "restricted"
	default:
		return "not-determined"
	}
}

// ParseStatus converts a configuration name into a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "not-determined", "prompt", "":
		return NotDetermined, nil
	case "authorized", "granted":
		return Authorized, nil
	case "denied":
		return Denied, nil
	case "restricted":
		return Restricted, nil
	default:
		return NotDetermined, fmt.Errorf("unknown permission status %q", s)
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Determined reports whether the user or policy has decided.
func (s Status) Determined() bool {
	return s != NotDetermined
}

// Authorizer is the platform authorization service.
type Authorizer interface {
	// Status returns the current decision without prompting.
	Status() Status
	// Request prompts the user and blocks until a decision is made.
	Request(ctx context.Context) (Status, error)
}

type phase int

const (
	notRequested phase = iota
	requesting
	resolved
)

// Gate performs the authorization request exactly once and caches the result.
type Gate struct {
	auth Authorizer
	ui   queue.Executor
	log  *slog.Logger

	mu       sync.Mutex
	phase    phase
	status   Status
	waiters  []func(bool)
	resolved chan struct{}
}

// NewGate creates a gate over the authorizer. Callbacks run on ui.
func NewGate(auth Authorizer, ui queue.Executor, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		auth:     auth,
		ui:       ui,
		log:      logger.With("component", "permission"),
		resolved: make(chan struct{}),
	}
}

// Status returns the authorization state. Until a decision is cached the
// authorizer is consulted on each call; once determined the value is kept for
// the life of the gate.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == resolved {
		return g.status
	}

	st := g.auth.Status()
	if st.Determined() && g.phase == notRequested {
		g.resolveLocked(st)
	}
	return st
}

// Request asks for camera access. cb runs on the UI executor exactly once
// with true only if access is authorized. Calls made while a request is in
// flight are queued and answered in registration order.
func (g *Gate) Request(cb func(granted bool)) {
	g.mu.Lock()

	switch g.phase {
	case resolved:
		granted := g.status == Authorized
		g.mu.Unlock()
		if cb != nil {
			g.ui.Dispatch(func() { cb(granted) })
		}
		return

	case requesting:
		if cb != nil {
			g.waiters = append(g.waiters, cb)
		}
		g.mu.Unlock()
		return
	}

	if st := g.auth.Status(); st.Determined() {
		g.resolveLocked(st)
		g.mu.Unlock()
		if cb != nil {
			g.ui.Dispatch(func() { cb(st == Authorized) })
		}
		return
	}

	g.phase = requesting
	if cb != nil {
		g.waiters = append(g.waiters, cb)
	}
	g.mu.Unlock()

	go g.prompt()
}

// Resolve joins or starts the request and blocks until it is resolved or ctx
// is done. It must not be called from the UI executor.
func (g *Gate) Resolve(ctx context.Context) (Status, error) {
	g.Request(nil)

	select {
	case <-g.resolved:
	case <-ctx.Done():
		return NotDetermined, ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, nil
}

func (g *Gate) prompt() {
	g.log.Info("requesting camera permission")

	st, err := g.auth.Request(context.Background())
	if err != nil {
		g.log.Error("permission request failed", "error", err)
		st = Denied
	}
	if !st.Determined() {
		st = Denied
	}

	g.mu.Lock()
	g.resolveLocked(st)
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()

	g.log.Info("camera permission resolved", "status", st)

	granted := st == Authorized
	for _, cb := range waiters {
		cb := cb
		g.ui.Dispatch(func() { cb(granted) })
	}
}

func (g *Gate) resolveLocked(st Status) {
	if g.phase == resolved {
		return
	}
	g.phase = resolved
	g.status = st
	close(g.resolved)
}
