package permission

import (
	"context"
	"fmt"
	"sync"
)

// Static is an Authorizer with a fixed decision. A NotDetermined Static
// resolves requests to Then.
type Static struct {
	Current Status
	Then    Status

	mu       sync.Mutex
	requests int
}

// Status returns the fixed current status.
func (s *Static) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Current
}

// Request records the prompt and answers with Then.
func (s *Static) Request(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if s.Current.Determined() {
		return s.Current, nil
	}
	s.Current = s.Then
	return s.Current, nil
}

// Requests returns how many prompts were issued.
func (s *Static) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// SettingKey is the settings key under which Persistent stores its decision.
const SettingKey = "camera_permission"

// Settings is the key-value storage Persistent reads and writes.
type Settings interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// PromptFunc asks the user for camera access.
type PromptFunc func(ctx context.Context) (bool, error)

// Persistent stores the user's decision in settings so it survives restarts,
// the way an operating system remembers camera grants.
type Persistent struct {
	settings Settings
	prompt   PromptFunc
}

// NewPersistent creates an authorizer backed by settings.
func NewPersistent(settings Settings, prompt PromptFunc) *Persistent {
	return &Persistent{settings: settings, prompt: prompt}
}

// Status returns the stored decision, or NotDetermined if there is none.
func (p *Persistent) Status() Status {
	v, err := p.settings.GetSetting(SettingKey)
	if err != nil || v == "" {
		return NotDetermined
	}
	st, err := ParseStatus(v)
	if err != nil {
		return NotDetermined
	}
	return st
}

// Request prompts the user and records the answer.
func (p *Persistent) Request(ctx context.Context) (Status, error) {
	if st := p.Status(); st.Determined() {
		return st, nil
	}
	if p.prompt == nil {
		return NotDetermined, fmt.Errorf("no permission prompt configured")
	}

	ok, err := p.prompt(ctx)
	if err != nil {
		return NotDetermined, fmt.Errorf("prompt: %w", err)
	}

	st := Denied
	if ok {
		st = Authorized
	}
	if err := p.settings.SetSetting(SettingKey, st.String()); err != nil {
		return st, fmt.Errorf("store permission: %w", err)
	}
	return st, nil
}
