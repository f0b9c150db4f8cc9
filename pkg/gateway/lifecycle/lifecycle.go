package lifecycle

import (
	"sync/atomic"
	"time"
)

// Lifecycle holds process state shared by the readiness probe and the live
// endpoint. Once draining, readiness fails and new live sessions are refused
// while existing ones are allowed to finish.
type Lifecycle struct {
	drainingSince atomic.Int64
}

// BeginDrain marks the process as draining. It reports false if draining had
// already begun.
func (l *Lifecycle) BeginDrain(now time.Time) bool {
	if l == nil {
		return false
	}
	return l.drainingSince.CompareAndSwap(0, now.UnixNano())
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.drainingSince.Load() != 0
}

// DrainingSince returns when draining began, or the zero time.
func (l *Lifecycle) DrainingSince() time.Time {
	if l == nil {
		return time.Time{}
	}
	ns := l.drainingSince.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
