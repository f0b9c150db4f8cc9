package session

import (
	"time"

	"golang.org/x/time/rate"
)

// inboundAudioLimiter bounds client audio by frames and bytes per second. Both
// buckets must admit a frame before either is charged.
type inboundAudioLimiter struct {
	now    func() time.Time
	frames *rate.Limiter
	bytes  *rate.Limiter
}

func newInboundAudioLimiter(now func() time.Time, fps int, bps int64, burstSeconds int) *inboundAudioLimiter {
	if fps <= 0 && bps <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	if burstSeconds <= 0 {
		burstSeconds = 1
	}

	l := &inboundAudioLimiter{now: now}
	if fps > 0 {
		l.frames = rate.NewLimiter(rate.Limit(fps), fps*burstSeconds)
	}
	if bps > 0 {
		l.bytes = rate.NewLimiter(rate.Limit(bps), int(bps)*burstSeconds)
	}
	return l
}

func (l *inboundAudioLimiter) Allow(frameBytes int) bool {
	if l == nil {
		return true
	}
	if frameBytes < 0 {
		frameBytes = 0
	}
	now := l.now()

	var frameRes *rate.Reservation
	if l.frames != nil {
		frameRes = reserveNow(l.frames, now, 1)
		if frameRes == nil {
			return false
		}
	}
	if l.bytes != nil && frameBytes > 0 {
		if reserveNow(l.bytes, now, frameBytes) == nil {
			if frameRes != nil {
				frameRes.CancelAt(now)
			}
			return false
		}
	}
	return true
}

// reserveNow takes n tokens only if they are available immediately.
func reserveNow(lim *rate.Limiter, now time.Time, n int) *rate.Reservation {
	r := lim.ReserveN(now, n)
	if !r.OK() {
		return nil
	}
	if r.DelayFrom(now) > 0 {
		r.CancelAt(now)
		return nil
	}
	return r
}
