package permission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/codescan/internal/queue"
)

// blockingAuthorizer holds Request until release is closed.
type blockingAuthorizer struct {
	release  chan struct{}
	answer   Status
	mu       sync.Mutex
	requests int
}

func (b *blockingAuthorizer) Status() Status { return NotDetermined }

func (b *blockingAuthorizer) Request(ctx context.Context) (Status, error) {
	b.mu.Lock()
	b.requests++
	b.mu.Unlock()
	<-b.release
	return b.answer, nil
}

func (b *blockingAuthorizer) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

func TestGate_ConcurrentRequestsPromptOnce(t *testing.T) {
	ui := queue.NewSerial("ui", nil)
	defer ui.Close()

	auth := &blockingAuthorizer{release: make(chan struct{}), answer: Authorized}
	gate := NewGate(auth, ui, nil)

	const n = 16
	var mu sync.Mutex
	var order []int
	var results []bool
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		i := i
		gate.Request(func(granted bool) {
			mu.Lock()
			order = append(order, i)
			results = append(results, granted)
			mu.Unlock()
			wg.Done()
		})
	}

	close(auth.release)
	wg.Wait()
	ui.Flush()

	if got := auth.count(); got != 1 {
		t.Errorf("authorizer prompted %d times, want 1", got)
	}
	if len(results) != n {
		t.Fatalf("callbacks fired %d times, want %d", len(results), n)
	}
	for i, v := range order {
		if v != i {
			t.Errorf("callback %d fired at position %d, want FIFO order", v, i)
		}
	}
	for _, granted := range results {
		if !granted {
			t.Error("expected every callback to receive true")
		}
	}
}

func TestGate_ResolvedAnswersWithoutPrompt(t *testing.T) {
	ui := queue.NewSerial("ui", nil)
	defer ui.Close()

	tests := []struct {
		status Status
		want   bool
	}{
		{Authorized, true},
		{Denied, false},
		{Restricted, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			auth := &Static{Current: tt.status}
			gate := NewGate(auth, ui, nil)

			got := make(chan bool, 1)
			gate.Request(func(granted bool) { got <- granted })

			select {
			case v := <-got:
				if v != tt.want {
					t.Errorf("granted = %v, want %v", v, tt.want)
				}
			case <-time.After(time.Second):
				t.Fatal("callback not invoked")
			}

			if auth.Requests() != 0 {
				t.Error("determined status should not prompt")
			}
			if gate.Status() != tt.status {
				t.Errorf("Status() = %s, want %s", gate.Status(), tt.status)
			}
		})
	}
}

func TestGate_CachesDecision(t *testing.T) {
	ui := queue.NewSerial("ui", nil)
	defer ui.Close()

	auth := &Static{Current: NotDetermined, Then: Authorized}
	gate := NewGate(auth, ui, nil)

	st, err := gate.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if st != Authorized {
		t.Fatalf("Resolve() = %s, want authorized", st)
	}

	// A later change at the platform level does not reach the cached gate.
	auth.mu.Lock()
	auth.Current = Denied
	auth.mu.Unlock()

	if gate.Status() != Authorized {
		t.Errorf("Status() = %s, want cached authorized", gate.Status())
	}
	if auth.Requests() != 1 {
		t.Errorf("authorizer prompted %d times, want 1", auth.Requests())
	}
}

func TestGate_ResolveHonorsContext(t *testing.T) {
	ui := queue.NewSerial("ui", nil)
	defer ui.Close()

	auth := &blockingAuthorizer{release: make(chan struct{}), answer: Denied}
	defer close(auth.release)
	gate := NewGate(auth, ui, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := gate.Resolve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Resolve() error = %v, want deadline exceeded", err)
	}
}

type failingAuthorizer struct{}

func (failingAuthorizer) Status() Status { return NotDetermined }
func (failingAuthorizer) Request(ctx context.Context) (Status, error) {
	return NotDetermined, errors.New("prompt unavailable")
}

func TestGate_RequestErrorDenies(t *testing.T) {
	ui := queue.NewSerial("ui", nil)
	defer ui.Close()

	gate := NewGate(failingAuthorizer{}, ui, nil)

	st, err := gate.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if st != Denied {
		t.Errorf("Resolve() = %s, want denied", st)
	}
}

type memSettings struct {
	values map[string]string
}

func (m *memSettings) GetSetting(key string) (string, error) { return m.values[key], nil }
func (m *memSettings) SetSetting(key, value string) error {
	m.values[key] = value
	return nil
}

func TestPersistent(t *testing.T) {
	settings := &memSettings{values: map[string]string{}}
	prompts := 0
	auth := NewPersistent(settings, func(ctx context.Context) (bool, error) {
		prompts++
		return true, nil
	})

	if auth.Status() != NotDetermined {
		t.Fatalf("Status() = %s, want not-determined", auth.Status())
	}

	st, err := auth.Request(context.Background())
	if err != nil || st != Authorized {
		t.Fatalf("Request() = %s, %v", st, err)
	}
	if settings.values[SettingKey] != "authorized" {
		t.Errorf("stored value = %q, want authorized", settings.values[SettingKey])
	}

	// Stored decision is reused.
	again := NewPersistent(settings, nil)
	if again.Status() != Authorized {
		t.Errorf("Status() after restart = %s, want authorized", again.Status())
	}
	if _, err := again.Request(context.Background()); err != nil {
		t.Errorf("Request() with stored decision error = %v", err)
	}
	if prompts != 1 {
		t.Errorf("prompted %d times, want 1", prompts)
	}
}

func TestParseStatus(t *testing.T) {
	for _, st := range []Status{NotDetermined, Authorized, Denied, Restricted} {
		got, err := ParseStatus(st.String())
		if err != nil || got != st {
			t.Errorf("ParseStatus(%q) = %v, %v", st.String(), got, err)
		}
	}
	if _, err := ParseStatus("maybe"); err == nil {
		t.Error("ParseStatus(maybe) should fail")
	}
}
