// Package gemini binds the sentinel controller to Gemini Live sessions.
package gemini

import (
	"log/slog"
	"sync"

	"github.com/vango-go/vai-sentinel/pkg/core/sentinel"
	"github.com/vango-go/vai-sentinel/pkg/gateway/metrics"
)

// Snapshot is a consistent view of what has been submitted to a Context.
type Snapshot struct {
	Model      string
	Config     sentinel.SessionConfig
	Generation uint64
	Ready      bool
}

// Context is the session context a sentinel.Controller declares its
// configuration to. It keeps only the latest submission; every SetConfig is a
// full replacement and supersedes whatever came before.
//
// A submission completes when the configuration arrives. SetModel alone only
// stages the model for the next generation.
type Context struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	model      string
	hasModel   bool
	cfg        sentinel.SessionConfig
	hasConfig  bool
	generation uint64
	changed    chan struct{}
}

func NewContext(logger *slog.Logger, m *metrics.Metrics) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		logger:  logger,
		metrics: m,
		changed: make(chan struct{}),
	}
}

// Deps exposes c as both setters of a sentinel controller. The returned value
// is stable, so mounting and updating with it never triggers a resubmission.
func (c *Context) Deps() sentinel.Deps {
	return sentinel.Deps{Model: c, Config: c}
}

func (c *Context) SetModel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = id
	c.hasModel = true
}

func (c *Context) SetConfig(cfg sentinel.SessionConfig) {
	c.mu.Lock()
	c.cfg = cfg
	c.hasConfig = true
	c.generation++
	gen := c.generation
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()

	c.metrics.ConfigSubmitted()
	c.logger.Debug("session context updated", "generation", gen)
}

// Changed returns a channel that is closed at the next completed submission.
func (c *Context) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Model:      c.model,
		Config:     c.cfg,
		Generation: c.generation,
		Ready:      c.hasModel && c.hasConfig,
	}
}
