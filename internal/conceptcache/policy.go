package conceptcache

import (
	"time"

	"github.com/roach88/semstore/internal/ir"
)

// SkipReason says why a concept was left alone.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipNotCachable
	SkipNotCached
	SkipNotOld
	SkipNotHard
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipNotCachable:
		return "not cachable"
	case SkipNotCached:
		return "not cached yet"
	case SkipNotOld:
		return "cache is not old yet"
	case SkipNotHard:
		return "not hard enough"
	default:
		return "unknown"
	}
}

// Message is the report text for the reason.
func (r SkipReason) Message() string {
	switch r {
	case SkipNotCachable:
		return "page not cachable (no concept description, maybe a redirect)"
	case SkipNotCached:
		return "page not cached yet"
	case SkipNotOld:
		return "cache is not old yet"
	case SkipNotHard:
		return `concept is not "hard" according to the query limits`
	default:
		return r.String()
	}
}

// Limits are the query complexity ceilings of the hard filter.
type Limits struct {
	MaxSize  int
	MaxDepth int
	Features ir.QueryFeature
}

// IsHard reports whether a concept exceeds any ceiling. A concept using
// a feature outside the allowed mask is hard whatever its size and depth.
func IsHard(rec ir.CacheRecord, limits Limits) bool {
	return rec.Size > limits.MaxSize ||
		rec.Depth > limits.MaxDepth ||
		!rec.Features.Within(limits.Features)
}

// EvaluateSkip applies the filters of opts to a concept's cache record in
// order; the first matching reason wins. A nil record is not cachable.
func EvaluateSkip(rec *ir.CacheRecord, opts Options, limits Limits, now time.Time) SkipReason {
	switch {
	case rec == nil:
		return SkipNotCachable
	case opts.UpdateOnly && !rec.IsFull():
		return SkipNotCached
	case opts.OldOnly && rec.IsFull() && rec.Age(now) < time.Duration(opts.OldMinutes)*time.Minute:
		return SkipNotOld
	case opts.HardOnly && !IsHard(*rec, limits):
		return SkipNotHard
	}
	return SkipNone
}

// ResolveRange turns a requested ID range into the range to scan. An end
// of 0 or less means the current maximum; a larger end is clamped to it.
func ResolveRange(start, end, maxExisting int64) (int64, int64) {
	if end <= 0 || end > maxExisting {
		return start, maxExisting
	}
	return start, end
}
