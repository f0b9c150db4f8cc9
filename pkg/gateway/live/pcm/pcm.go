// Package pcm has helpers for the 16-bit little-endian mono PCM carried on the
// live socket.
package pcm

import "time"

const bytesPerSample = 2

// Aligned reports whether n bytes hold a whole number of samples.
func Aligned(n int) bool {
	return n%bytesPerSample == 0
}

// Duration is the playback time of n bytes at sampleRateHz.
func Duration(n, sampleRateHz int) time.Duration {
	if n <= 0 || sampleRateHz <= 0 {
		return 0
	}
	samples := int64(n / bytesPerSample)
	return time.Duration(samples * int64(time.Second) / int64(sampleRateHz))
}
