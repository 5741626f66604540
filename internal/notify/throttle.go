package notify

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/preloadwatch/internal/detector"
)

// Throttle lets an identical notice through once per window.
type Throttle struct {
	cache *cache.Cache
}

// NewThrottle returns a throttle with the given window. A window of zero or
// less lets every notice through.
func NewThrottle(window time.Duration) *Throttle {
	if window <= 0 {
		return &Throttle{}
	}
	return &Throttle{cache: cache.New(window, 2*window)}
}

// Allow reports whether n has not been seen within the window and marks it
// as seen.
func (t *Throttle) Allow(n detector.Notice) bool {
	if t == nil || t.cache == nil {
		return true
	}
	return t.cache.Add(n.Key(), struct{}{}, cache.DefaultExpiration) == nil
}

// Filter keeps the notices Allow lets through.
func (t *Throttle) Filter(notices []detector.Notice) []detector.Notice {
	out := notices[:0:0]
	for _, n := range notices {
		if t.Allow(n) {
			out = append(out, n)
		}
	}
	return out
}

// Reset forgets every notice seen so far.
func (t *Throttle) Reset() {
	if t != nil && t.cache != nil {
		t.cache.Flush()
	}
}
