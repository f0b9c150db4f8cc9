// Package store keeps an audit trail of what the monitor was configured with and
// what it said.
package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Submission records one configuration installed into a live session context.
type Submission struct {
	SessionID     string          `json:"session_id"`
	Model         string          `json:"model"`
	PolicyVersion string          `json:"policy_version"`
	Generation    uint64          `json:"generation"`
	Config        json.RawMessage `json:"config"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Intervention records one utterance the monitor produced. Interrupted
// interventions carry the text spoken before the cut.
type Intervention struct {
	SessionID      string    `json:"session_id"`
	InterventionID string    `json:"intervention_id"`
	Model          string    `json:"model"`
	PolicyVersion  string    `json:"policy_version"`
	Format         string    `json:"format"`
	Text           string    `json:"text"`
	Interrupted    bool      `json:"interrupted"`
	CreatedAt      time.Time `json:"created_at"`
}

// Recorder persists audit records. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordSubmission(ctx context.Context, s Submission) error
	RecordIntervention(ctx context.Context, i Intervention) error
}

// Store is a Recorder that can also be queried.
type Store interface {
	Recorder
	ListInterventions(ctx context.Context, sessionID string) ([]Intervention, error)
	Close()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSubmission(context.Context, Submission) error     { return nil }
func (Nop) RecordIntervention(context.Context, Intervention) error { return nil }
func (Nop) ListInterventions(context.Context, string) ([]Intervention, error) {
	return nil, nil
}
func (Nop) Close() {}

// Memory keeps records in process memory.
type Memory struct {
	mu            sync.Mutex
	submissions   []Submission
	interventions []Intervention
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordSubmission(_ context.Context, s Submission) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, s)
	return nil
}

func (m *Memory) RecordIntervention(_ context.Context, i Intervention) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interventions = append(m.interventions, i)
	return nil
}

func (m *Memory) ListInterventions(_ context.Context, sessionID string) ([]Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Intervention, 0)
	for _, i := range m.interventions {
		if i.SessionID == sessionID {
			out = append(out, i)
		}
	}
	return out, nil
}

// Submissions returns a copy of all recorded submissions.
func (m *Memory) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Submission, len(m.submissions))
	copy(out, m.submissions)
	return out
}

func (m *Memory) Close() {}
