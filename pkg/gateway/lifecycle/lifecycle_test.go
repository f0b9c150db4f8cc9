package lifecycle

import (
	"testing"
	"time"
)

func TestLifecycle_BeginDrainOnce(t *testing.T) {
	var l Lifecycle
	if l.IsDraining() {
		t.Fatalf("new lifecycle is draining")
	}
	if !l.DrainingSince().IsZero() {
		t.Fatalf("DrainingSince=%v, want zero", l.DrainingSince())
	}

	at := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	if !l.BeginDrain(at) {
		t.Fatalf("first BeginDrain=false, want true")
	}
	if l.BeginDrain(at.Add(time.Minute)) {
		t.Fatalf("second BeginDrain=true, want false")
	}
	if !l.IsDraining() {
		t.Fatalf("IsDraining=false after BeginDrain")
	}
	if got := l.DrainingSince(); !got.Equal(at) {
		t.Fatalf("DrainingSince=%v, want %v", got, at)
	}
}

func TestLifecycle_NilSafe(t *testing.T) {
	var l *Lifecycle
	if l.BeginDrain(time.Now()) || l.IsDraining() || !l.DrainingSince().IsZero() {
		t.Fatalf("nil lifecycle should be inert")
	}
}
