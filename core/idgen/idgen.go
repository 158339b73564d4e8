// Package idgen provides the injectable form-id generator. Production code
// uses a time-seeded source; tests inject a seeded or sequential one so id
// streams are reproducible.
package idgen

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Generator produces unique form identifiers.
type Generator interface {
	NextID() string
}

// TimeRandom composes a millisecond timestamp with a random suffix, keeping
// collision probability negligible across concurrent clients.
type TimeRandom struct {
	prefix string
	mu     sync.Mutex
	rng    *rand.Rand
}

// NewTimeRandom returns a generator seeded from the clock.
func NewTimeRandom(prefix string) *TimeRandom {
	return NewSeededTimeRandom(prefix, time.Now().UnixNano())
}

// NewSeededTimeRandom returns a generator with a fixed random seed.
func NewSeededTimeRandom(prefix string, seed int64) *TimeRandom {
	return &TimeRandom{prefix: prefix, rng: rand.New(rand.NewSource(seed))}
}

func (g *TimeRandom) NextID() string {
	g.mu.Lock()
	suffix := g.rng.Intn(1_000_000)
	g.mu.Unlock()
	return fmt.Sprintf("%s-%d-%06d", g.prefix, time.Now().UnixMilli(), suffix)
}

// Sequence yields prefix-1, prefix-2, ... for deterministic tests.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (g *Sequence) NextID() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
