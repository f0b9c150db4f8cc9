package sentinel

import (
	"log/slog"
	"reflect"
	"sync"
)

// ModelSetter selects the remote model of a session context.
type ModelSetter interface {
	SetModel(id string)
}

// ConfigSetter replaces the configuration of a session context. Implementations
// take ownership of cfg and must treat every call as a full replacement.
type ConfigSetter interface {
	SetConfig(cfg SessionConfig)
}

// Deps are the injected capabilities the controller declares its configuration
// to. A change in the identity of either field triggers a resubmission.
//
// Identity is interface equality. Values that are not comparable (bare funcs,
// maps, slices, or structs holding one in an interface field) are never
// considered identical, so wrap plain functions with ModelSetterFunc and
// ConfigSetterFunc and keep the result.
type Deps struct {
	Model  ModelSetter
	Config ConfigSetter
}

type modelSetterFunc struct{ fn func(string) }

func (m *modelSetterFunc) SetModel(id string) { m.fn(id) }

// ModelSetterFunc adapts fn to a ModelSetter with a stable identity. Each call
// yields a distinct identity, just like an unmemoized callback.
func ModelSetterFunc(fn func(id string)) ModelSetter {
	return &modelSetterFunc{fn: fn}
}

type configSetterFunc struct{ fn func(SessionConfig) }

func (c *configSetterFunc) SetConfig(cfg SessionConfig) { c.fn(cfg) }

// ConfigSetterFunc adapts fn to a ConfigSetter with a stable identity.
func ConfigSetterFunc(fn func(cfg SessionConfig)) ConfigSetter {
	return &configSetterFunc{fn: fn}
}

// Controller declares the silent-monitor model and configuration to a session
// context on mount and again whenever the context's setters change identity.
//
// Setters are invoked while the controller's lock is held and must not call
// back into the controller. They are hand-off operations: the controller never
// waits for the session context to act on a submission and never inspects or
// recovers from a setter failure.
type Controller struct {
	logger *slog.Logger

	mu          sync.Mutex
	mounted     bool
	deps        Deps
	submissions uint64
}

// NewController creates an unmounted controller.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{logger: logger}
}

// Mount activates the controller and performs the first submission. Mounting an
// already mounted controller behaves like Update.
func (c *Controller) Mount(deps Deps) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mounted {
		c.updateLocked(deps)
		return
	}
	c.mounted = true
	c.deps = deps
	c.submitLocked("mount")
}

// Update re-declares the configuration iff the identity of either setter
// changed since the last submission. It is a no-op while unmounted.
func (c *Controller) Update(deps Deps) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateLocked(deps)
}

func (c *Controller) updateLocked(deps Deps) {
	if !c.mounted {
		return
	}
	if sameIdentity(c.deps.Model, deps.Model) && sameIdentity(c.deps.Config, deps.Config) {
		return
	}
	c.deps = deps
	c.submitLocked("dependencies changed")
}

// Unmount deactivates the controller. The session context keeps whatever was
// last submitted; its lifetime is not the controller's concern.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted = false
	c.deps = Deps{}
}

// Mounted reports whether the controller is active.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Submissions returns how many submission sequences have run.
func (c *Controller) Submissions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submissions
}

func (c *Controller) submitLocked(reason string) {
	model := SelectModel()
	cfg := NewSessionConfig()

	if c.deps.Model != nil {
		c.deps.Model.SetModel(model)
	}
	if c.deps.Config != nil {
		c.deps.Config.SetConfig(cfg)
	}
	c.submissions++

	c.logger.Debug("sentinel config submitted",
		"reason", reason,
		"model", model,
		"policy_version", PolicyVersion,
		"submission", c.submissions,
	)
}

func sameIdentity(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	// Value.Comparable inspects interface fields, which Type.Comparable does not.
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}
