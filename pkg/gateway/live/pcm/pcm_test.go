package pcm

import (
	"testing"
	"time"
)

func TestAligned(t *testing.T) {
	for n, want := range map[int]bool{0: true, 1: false, 2: true, 8191: false, 8192: true} {
		if got := Aligned(n); got != want {
			t.Fatalf("Aligned(%d)=%v, want %v", n, got, want)
		}
	}
}

func TestDuration(t *testing.T) {
	cases := []struct {
		n, rate int
		want    time.Duration
	}{
		{32000, 16000, time.Second},
		{640, 16000, 20 * time.Millisecond},
		{48000, 24000, time.Second},
		{0, 16000, 0},
		{100, 0, 0},
	}
	for _, tc := range cases {
		if got := Duration(tc.n, tc.rate); got != tc.want {
			t.Fatalf("Duration(%d, %d)=%v, want %v", tc.n, tc.rate, got, tc.want)
		}
	}
}
