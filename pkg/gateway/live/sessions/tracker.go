// Package sessions tracks active live monitor relays so the gateway can bound
// concurrency and drain them on shutdown.
package sessions

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	ErrAtCapacity = errors.New("live session capacity reached")
	ErrDuplicate  = errors.New("live session already registered")
)

// Handle is how the tracker reaches a running relay.
type Handle struct {
	Cancel func()
	Warn   func(code, message string) error
}

type Tracker struct {
	max int

	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

type entry struct {
	handle Handle
	once   sync.Once
}

// NewTracker admits at most max concurrent sessions. max <= 0 means unbounded.
func NewTracker(max int) *Tracker {
	return &Tracker{
		max:      max,
		sessions: make(map[string]*entry),
	}
}

// Admit registers a session if there is room. The returned release func is
// idempotent and must be called when the session ends.
func (t *Tracker) Admit(sessionID string, h Handle) (release func(), err error) {
	if t == nil {
		return func() {}, nil
	}

	t.mu.Lock()
	if t.sessions == nil {
		t.sessions = make(map[string]*entry)
	}
	if _, exists := t.sessions[sessionID]; exists {
		t.mu.Unlock()
		return nil, ErrDuplicate
	}
	if t.max > 0 && len(t.sessions) >= t.max {
		t.mu.Unlock()
		return nil, ErrAtCapacity
	}
	e := &entry{handle: h}
	t.sessions[sessionID] = e
	t.wg.Add(1)
	t.mu.Unlock()

	return func() { t.release(sessionID, e) }, nil
}

func (t *Tracker) release(sessionID string, e *entry) {
	e.once.Do(func() {
		t.mu.Lock()
		if t.sessions[sessionID] == e {
			delete(t.sessions, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// IDs returns the active session ids in sorted order.
func (t *Tracker) IDs() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (t *Tracker) handles() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Handle, 0, len(t.sessions))
	for _, e := range t.sessions {
		out = append(out, e.handle)
	}
	return out
}

// WarnAll sends a warning to every session. Delivery is best effort; sent
// counts attempts.
func (t *Tracker) WarnAll(code, message string) (sent int) {
	if t == nil {
		return 0
	}
	for _, h := range t.handles() {
		if h.Warn == nil {
			continue
		}
		_ = h.Warn(code, message)
		sent++
	}
	return sent
}

func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}
	for _, h := range t.handles() {
		if h.Cancel == nil {
			continue
		}
		h.Cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every admitted session has been released or ctx is done.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
