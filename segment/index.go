package segment

import (
	"fmt"
	"strings"
	"sync"

	"github.com/olapio/starcache/star"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Index is the registry of published segments.  Matching reads take
// only the read lock; segments are append-mostly and invalidated by
// marking, not removal, so a matched segment stays safe to read after
// the lock is released.
type Index struct {
	logger *zap.Logger

	mu       sync.RWMutex
	segments map[uint64][]*Segment

	loading singleflight.Group
}

func NewIndex(logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		logger:   logger,
		segments: make(map[uint64][]*Segment),
	}
}

// Add publishes a segment.
func (x *Index) Add(s *Segment) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.segments[s.KeyHash()] = append(x.segments[s.KeyHash()], s)
}

// Lookup returns a loaded, matching segment, or nil.  Failed segments
// are never returned; the caller must plan a fresh fetch.
func (x *Index) Lookup(key *AggregationKey, measure *star.Measure) *Segment {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, s := range x.segments[key.Hash()] {
		if s.State() == StateLoaded && s.Matches(key, measure) {
			return s
		}
	}
	return nil
}

// Load returns a matching loaded segment, deduplicating concurrent
// fetches of the same aggregation key through one in-flight call to
// fetch.  fetch must return a segment already in the Loaded state.
func (x *Index) Load(key *AggregationKey, measure *star.Measure, fetch func() (*Segment, error)) (*Segment, error) {
	if s := x.Lookup(key, measure); s != nil {
		return s, nil
	}
	flightKey := fmt.Sprintf("%d/%s", key.Hash(), measure)
	v, err, _ := x.loading.Do(flightKey, func() (any, error) {
		if s := x.Lookup(key, measure); s != nil {
			return s, nil
		}
		s, err := fetch()
		if err != nil {
			x.logger.Debug("segment load failed",
				zap.String("measure", measure.String()),
				zap.Error(err))
			return nil, err
		}
		x.Add(s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Segment), nil
}

// All returns a snapshot of every published segment, including failed
// ones.
func (x *Index) All() []*Segment {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var all []*Segment
	for _, bucket := range x.segments {
		all = append(all, bucket...)
	}
	return all
}

// ForStar returns a snapshot of the segments over one star.
func (x *Index) ForStar(st *star.Star) []*Segment {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []*Segment
	for _, bucket := range x.segments {
		for _, s := range bucket {
			if s.Star == st {
				out = append(out, s)
			}
		}
	}
	return out
}

// Compact drops failed segments from the registry.  Safe to run any
// time; in-flight readers holding a failed segment already treat it as
// "not present".
func (x *Index) Compact() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	dropped := 0
	for hash, bucket := range x.segments {
		kept := bucket[:0]
		for _, s := range bucket {
			if s.State() == StateFailed {
				dropped++
			} else {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(x.segments, hash)
		} else {
			x.segments[hash] = kept
		}
	}
	return dropped
}

// Describe dumps the registry for diagnostics.
func (x *Index) Describe(b *strings.Builder) {
	for _, s := range x.All() {
		s.Describe(b)
		b.WriteByte('\n')
	}
}
