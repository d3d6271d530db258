// Package util contains misc internal utilities.
package util

import (
	"math"
	"time"
)

// Limiter holds a closed range [Min, Max]
type Limiter struct {
	Min float64 `yaml:"Min" koanf:"Min"`
	Max float64 `yaml:"Max" koanf:"Max"`
}

// Check returns true if Min <= f <= Max
func (l Limiter) Check(f float64) bool {
	return f >= l.Min && f <= l.Max
}

// Clamp returns f limited to the range of l
func (l Limiter) Clamp(f float64) float64 {
	return Clamp(f, l.Min, l.Max)
}

// Valid returns true if the range is not inverted
func (l Limiter) Valid() bool {
	return l.Min <= l.Max
}

// Contains returns true if other lies entirely inside l
func (l Limiter) Contains(other Limiter) bool {
	return other.Min >= l.Min && other.Max <= l.Max
}

// Clamp limits x to low <= x <= high
func Clamp(x, low, high float64) float64 {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// SecsToDuration converts a floating point number of seconds to a time.Duration
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(math.Round(secs * 1e9))
}

// UniqueString returns the unique strings in a slice, in order of first occurrence
func UniqueString(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
