// Package segment defines the unit of cached aggregate data: one
// measure constrained by a set of (column, predicate) pairs over one
// star, with exclusion-aware cell lookup and a matching key used to
// route cell requests.
package segment

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/olapio/starcache/bitkey"
	"github.com/olapio/starcache/pred"
	"github.com/olapio/starcache/star"
	"github.com/segmentio/ksuid"
)

// AggregationKey identifies which segments can answer a cell request:
// the star, the constrained-columns bit-key, and the request's
// compound predicates.
type AggregationKey struct {
	Star     *star.Star
	BitKey   bitkey.Key
	Compound []pred.Predicate
	hash     uint64
}

func NewAggregationKey(st *star.Star, key bitkey.Key, compound []pred.Predicate) *AggregationKey {
	return &AggregationKey{
		Star:     st,
		BitKey:   key,
		Compound: compound,
		hash:     keyHash(st, key, compound),
	}
}

// Hash is order-independent over the compound predicate list so that
// equal keys always hash equal.
func (k *AggregationKey) Hash() uint64 { return k.hash }

func keyHash(st *star.Star, key bitkey.Key, compound []pred.Predicate) uint64 {
	h := key.Hash()
	h ^= uint64(len(st.Columns())) * 0x9e3779b97f4a7c15
	for _, p := range compound {
		// XOR keeps the fold order-independent.
		h ^= p.Hash()
	}
	return h
}

// equalCompound compares compound predicate lists as unordered
// multisets: order-independent, duplicate-sensitive.
func equalCompound(a, b []pred.Predicate) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
outer:
	for _, p := range a {
		for i, q := range b {
			if !matched[i] && p.Equal(q) {
				matched[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// State is the segment lifecycle.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ExcludedRegion is a hole punched into a segment by a partial flush.
// WouldContain must be conservative: true whenever the region might
// contain the cell.
type ExcludedRegion interface {
	WouldContain(row pred.Row) bool
	Describe(b *strings.Builder)
}

// PredicateRegion excludes every cell matching a predicate.
type PredicateRegion struct {
	Predicate pred.Predicate
}

func (r *PredicateRegion) WouldContain(row pred.Row) bool {
	return r.Predicate.Evaluate(row)
}

func (r *PredicateRegion) Describe(b *strings.Builder) {
	r.Predicate.Describe(b)
}

// Segment is one cached slice of aggregated cell values.  Once
// published a segment is immutable except for its state flag and its
// copy-on-write excluded-region list, so matching reads take no lock.
type Segment struct {
	ID         ksuid.KSUID
	Star       *star.Star
	Measure    *star.Measure
	Columns    []*star.Column
	Predicates []pred.ColumnPredicate
	Compound   []pred.Predicate

	bitKey   bitkey.Key
	hash     uint64
	state    atomic.Int32
	err      error
	excluded atomic.Pointer[[]ExcludedRegion]
	axes     []*Axis
	data     Dataset
}

// New creates an unloaded segment.  predicates is parallel to columns,
// one predicate per constrained column.
func New(st *star.Star, measure *star.Measure, columns []*star.Column, predicates []pred.ColumnPredicate, compound []pred.Predicate) *Segment {
	if len(columns) != len(predicates) {
		panic(fmt.Sprintf("segment: %d columns with %d predicates", len(columns), len(predicates)))
	}
	key := st.MakeBitKey()
	for _, c := range columns {
		key = key.Set(c.Bit)
	}
	return &Segment{
		ID:         ksuid.New(),
		Star:       st,
		Measure:    measure,
		Columns:    columns,
		Predicates: predicates,
		Compound:   compound,
		bitKey:     key,
		hash:       keyHash(st, key, compound),
	}
}

// BitKey is the constrained-columns fingerprint.
func (s *Segment) BitKey() bitkey.Key { return s.bitKey }

// KeyHash is the derived aggregation-key hash used for fast negative
// matching.
func (s *Segment) KeyHash() uint64 { return s.hash }

// Matches reports whether this segment can answer requests routed by
// key for measure.  The hash comparison runs first; predicate and list
// comparisons only happen on hash agreement.
func (s *Segment) Matches(key *AggregationKey, measure *star.Measure) bool {
	if s.hash != key.hash {
		return false
	}
	if s.Measure != measure {
		return false
	}
	if !s.bitKey.Equal(key.BitKey) {
		return false
	}
	if s.Star != key.Star {
		return false
	}
	return equalCompound(s.Compound, key.Compound)
}

// State returns the current lifecycle state.
func (s *Segment) State() State { return State(s.state.Load()) }

// MarkLoading transitions Unloaded to Loading, reporting whether this
// caller won the transition.
func (s *Segment) MarkLoading() bool {
	return s.state.CompareAndSwap(int32(StateUnloaded), int32(StateLoading))
}

// SetData publishes the segment's backing data and axes and marks it
// Loaded.  Fails if the segment was invalidated while loading.
func (s *Segment) SetData(axes []*Axis, data Dataset) bool {
	s.axes = axes
	s.data = data
	return s.state.CompareAndSwap(int32(StateLoading), int32(StateLoaded))
}

// Fail invalidates the segment.  A failed segment is never again
// returned as a cache hit; callers retry with a fresh segment.
func (s *Segment) Fail(err error) {
	s.err = err
	s.state.Store(int32(StateFailed))
}

// Err returns the failure cause, if any.
func (s *Segment) Err() error { return s.err }

// Exclude punches a hole into the segment.  Regions equal by
// description are coalesced.  Called under the cache's flush lock;
// readers observe the new list atomically.
func (s *Segment) Exclude(r ExcludedRegion) {
	old := s.ExcludedRegions()
	var rb strings.Builder
	r.Describe(&rb)
	for _, existing := range old {
		var eb strings.Builder
		existing.Describe(&eb)
		if eb.String() == rb.String() {
			return
		}
	}
	regions := make([]ExcludedRegion, len(old), len(old)+1)
	copy(regions, old)
	regions = append(regions, r)
	s.excluded.Store(&regions)
}

// ExcludedRegions returns the current exclusion list.
func (s *Segment) ExcludedRegions() []ExcludedRegion {
	if p := s.excluded.Load(); p != nil {
		return *p
	}
	return nil
}

// IsExcluded reports whether a cell-key tuple falls in any excluded
// region.  This scan is on the hot read path; flush keeps the list
// small by coalescing.
func (s *Segment) IsExcluded(row pred.Row) bool {
	for _, r := range s.ExcludedRegions() {
		if r.WouldContain(row) {
			return true
		}
	}
	return false
}

// CellValue looks up one cell.  It returns "not present" when the
// segment is not loaded, the cell is excluded, or the cell's keys fall
// outside the segment's axes.
func (s *Segment) CellValue(row pred.Row) (any, bool) {
	if s.State() != StateLoaded {
		return nil, false
	}
	if s.IsExcluded(row) {
		return nil, false
	}
	offset := 0
	for _, a := range s.axes {
		v, ok := row[a.Column]
		if !ok {
			return nil, false
		}
		ord, ok := a.Ordinal(v)
		if !ok {
			return nil, false
		}
		offset = offset*len(a.Keys) + ord
	}
	return s.data.Get(offset)
}

// Axes returns the segment's axes, valid once Loaded.
func (s *Segment) Axes() []*Axis { return s.axes }

// Describe renders the segment for diagnostics.
func (s *Segment) Describe(b *strings.Builder) {
	fmt.Fprintf(b, "Segment %s {measure=%s, state=%s", s.ID, s.Measure, s.State())
	for i, c := range s.Columns {
		fmt.Fprintf(b, ", %s: ", c)
		s.Predicates[i].Describe(b)
	}
	if excluded := s.ExcludedRegions(); len(excluded) > 0 {
		b.WriteString(", excluded: [")
		for i, r := range excluded {
			if i > 0 {
				b.WriteString("; ")
			}
			r.Describe(b)
		}
		b.WriteByte(']')
	}
	b.WriteByte('}')
}
