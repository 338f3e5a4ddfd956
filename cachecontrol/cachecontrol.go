// Package cachecontrol is the cache-invalidation façade: it builds
// cell regions and member sets, normalizes regions, drives flush of
// the segment cache, and executes member-edit commands under the
// single member-mutation lock.
package cachecontrol

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/olapio/starcache/memberset"
	"github.com/olapio/starcache/pred"
	"github.com/olapio/starcache/region"
	"github.com/olapio/starcache/segment"
	"github.com/olapio/starcache/star"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// errFlushed invalidates segments that overlap a flush region but
// cannot be narrowed by an excluded region.
var errFlushed = errors.New("segment invalidated by flush")

// CacheControl owns the member-mutation lock and the published segment
// index for a set of cubes.
type CacheControl struct {
	logger *zap.Logger
	cubes  []*star.Cube
	reader memberset.MemberReader

	// mu guards all member-cache mutation and region flush; segment
	// matching reads never take it.
	mu      sync.Mutex
	members *memberCache
	index   *segment.Index

	segmentsFlushed  prometheus.Counter
	regionsExcluded  prometheus.Counter
	commandsExecuted prometheus.Counter
}

// New builds a CacheControl.  logger may be nil; registerer may be nil
// for an unregistered (self-contained) metrics registry.
func New(config Config, cubes []*star.Cube, reader memberset.MemberReader, logger *zap.Logger, registerer prometheus.Registerer) (*CacheControl, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	entries, err := config.memberCacheEntries()
	if err != nil {
		return nil, err
	}
	factory := promauto.With(registerer)
	return &CacheControl{
		logger:  logger,
		cubes:   cubes,
		reader:  reader,
		members: newMemberCache(entries, config.DisableEviction, factory),
		index:   segment.NewIndex(logger),
		segmentsFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "starcache_segments_flushed_total",
			Help: "Number of segments invalidated by flush.",
		}),
		regionsExcluded: factory.NewCounter(prometheus.CounterOpts{
			Name: "starcache_regions_excluded_total",
			Help: "Number of excluded regions punched into segments.",
		}),
		commandsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "starcache_commands_executed_total",
			Help: "Number of member edit commands executed.",
		}),
	}, nil
}

// Index exposes the published-segment registry to the evaluator.
func (cc *CacheControl) Index() *segment.Index { return cc.index }

// MemberCache exposes the member cache mutation surface.  Mutation
// outside command execution bypasses the lock discipline; only the
// engine's loader paths should use it directly.
func (cc *CacheControl) MemberCache() memberset.MemberCache { return cc.members }

// CreateMemberRegion builds a region of the given members, optionally
// with descendants.
func (cc *CacheControl) CreateMemberRegion(descendants bool, members ...*star.Member) region.CellRegion {
	return region.NewMemberRegion(descendants, members...)
}

// CreateMemberRangeRegion builds a member-range region.
func (cc *CacheControl) CreateMemberRangeRegion(level *star.Level, lower *star.Member, lowerInclusive bool, upper *star.Member, upperInclusive bool, descendants bool) region.CellRegion {
	return region.NewMemberRangeRegion(level, lower, lowerInclusive, upper, upperInclusive, descendants)
}

// CreateCrossjoinRegion builds the crossjoin of regions.
func (cc *CacheControl) CreateCrossjoinRegion(regions ...region.CellRegion) region.CellRegion {
	return region.NewCrossjoin(regions...)
}

// CreateUnionRegion builds the union of regions.
func (cc *CacheControl) CreateUnionRegion(regions ...region.CellRegion) region.CellRegion {
	return region.NewUnion(regions...)
}

// CreateMeasuresRegion builds the region of all of a cube's measures.
func (cc *CacheControl) CreateMeasuresRegion(cube *star.Cube) region.CellRegion {
	members := make([]*star.Member, 0, len(cube.Measures))
	for _, m := range cube.Measures {
		members = append(members, m.Member)
	}
	return region.NewMemberRegion(false, members...)
}

// CreateMemberSet builds a simple member set.
func (cc *CacheControl) CreateMemberSet(descendants bool, members ...*star.Member) memberset.MemberSet {
	return memberset.NewSimpleSet(descendants, members...)
}

// CreateRangeSet builds a member-range set.
func (cc *CacheControl) CreateRangeSet(level *star.Level, lower *star.Member, lowerInclusive bool, upper *star.Member, upperInclusive bool, descendants bool) memberset.MemberSet {
	return memberset.NewRangeSet(level, lower, lowerInclusive, upper, upperInclusive, descendants)
}

// CreateUnionSet builds the union of member sets.
func (cc *CacheControl) CreateUnionSet(sets ...memberset.MemberSet) memberset.MemberSet {
	return memberset.NewUnionSet(sets...)
}

// CreateDeleteCommand, CreateAddCommand, CreateMoveCommand,
// CreateSetPropertyCommand and CreateCompoundCommand build member-edit
// commands for Execute.
func (cc *CacheControl) CreateDeleteCommand(set memberset.MemberSet) memberset.Command {
	return memberset.NewDeleteCommand(set)
}

func (cc *CacheControl) CreateAddCommand(m *star.Member) memberset.Command {
	return memberset.NewAddCommand(m)
}

func (cc *CacheControl) CreateMoveCommand(m, newParent *star.Member) memberset.Command {
	return memberset.NewMoveCommand(m, newParent)
}

func (cc *CacheControl) CreateSetPropertyCommand(set memberset.MemberSet, props map[string]any) memberset.Command {
	return memberset.NewSetPropertyCommand(set, props)
}

func (cc *CacheControl) CreateCompoundCommand(children ...memberset.Command) memberset.Command {
	return memberset.NewCompoundCommand(children...)
}

// Flush normalizes a region and invalidates every segment that might
// overlap it.  Invalidation is conservative: a segment whose overlap
// with the region cannot be proven disjoint is dropped from further
// matching.
func (cc *CacheControl) Flush(r region.CellRegion) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.flushRegion(r)
}

func (cc *CacheControl) flushRegion(r region.CellRegion) error {
	var merr error
	for _, entry := range region.Normalize(r).Regions {
		merr = multierr.Append(merr, cc.flushEntry(entry))
	}
	return merr
}

func (cc *CacheControl) flushEntry(entry region.CellRegion) error {
	targets, err := cc.targetSegments(entry)
	if err != nil {
		return err
	}
	columns := region.FindAxisValues(entry)
	for _, s := range targets {
		cc.flushSegment(s, columns)
	}
	return nil
}

// targetSegments selects the segments an entry can affect: the
// segments of the entry's measures, or, when the entry names no
// measure, every segment of every cube spanning the entry's
// dimensions.
func (cc *CacheControl) targetSegments(entry region.CellRegion) ([]*segment.Segment, error) {
	measureMembers := region.FindMeasures(entry)
	if len(measureMembers) == 0 {
		var targets []*segment.Segment
		for _, cube := range cc.cubes {
			if !cubeSpans(cube, entry.Dimensionality()) {
				continue
			}
			for _, s := range cc.index.ForStar(cube.Star) {
				if s.Measure.Cube == cube {
					targets = append(targets, s)
				}
			}
		}
		return targets, nil
	}
	var targets []*segment.Segment
	for _, member := range measureMembers {
		measure := cc.resolveMeasure(member)
		if measure == nil {
			return nil, fmt.Errorf("measure %s: %w", member, star.ErrMemberNotFound)
		}
		for _, s := range cc.index.ForStar(measure.Cube.Star) {
			if s.Measure == measure {
				targets = append(targets, s)
			}
		}
	}
	return targets, nil
}

func (cc *CacheControl) resolveMeasure(member *star.Member) *star.Measure {
	for _, cube := range cc.cubes {
		for _, m := range cube.Measures {
			if m.Member == member {
				return m
			}
		}
	}
	return nil
}

// flushSegment decides, per segment, between three outcomes: provably
// disjoint (keep), overlap expressible over the segment's own
// constrained columns (punch an excluded region), or anything else
// (conservatively fail the segment).
func (cc *CacheControl) flushSegment(s *segment.Segment, columns []region.SegmentColumn) {
	if s.State() == segment.StateFailed {
		return
	}
	if len(columns) == 0 {
		// The entry constrains measures only: the whole segment goes.
		s.Fail(errFlushed)
		cc.segmentsFlushed.Inc()
		return
	}
	var exclude []pred.Predicate
	conservative := false
	for _, sc := range columns {
		if sc.Column.Star != s.Star || !s.BitKey().Get(sc.Column.Bit) {
			// The flush slices along a column this segment
			// aggregates over; the overlap cannot be narrowed.
			conservative = true
			continue
		}
		if sc.Wildcard {
			conservative = true
			continue
		}
		p := cc.segmentPredicate(s, sc.Column)
		var hits []any
		for _, v := range sc.Values {
			if p == nil || p.EvaluateValue(v) {
				hits = append(hits, v)
			}
		}
		if len(hits) == 0 {
			// Provably disjoint on this column; the segment is
			// untouched.
			return
		}
		exclude = append(exclude, pred.NewValueList(sc.Column, hits...))
	}
	if conservative || len(exclude) == 0 {
		s.Fail(errFlushed)
		cc.segmentsFlushed.Inc()
		return
	}
	p := exclude[0]
	if len(exclude) > 1 {
		p = pred.NewAnd(exclude...)
	}
	s.Exclude(&segment.PredicateRegion{Predicate: p})
	cc.regionsExcluded.Inc()
}

func (cc *CacheControl) segmentPredicate(s *segment.Segment, column *star.Column) pred.ColumnPredicate {
	for i, c := range s.Columns {
		if c == column {
			return s.Predicates[i]
		}
	}
	return nil
}

// Execute runs a member-edit command: plan, commit, then flush the
// affected cell regions crossed with the measures of every cube
// spanning them, all under the single mutation lock.  Flush runs after
// commit because it recomputes from the now-current member cache
// state.  Stale member references encountered while crossing a cube
// are logged and skipped, never fatal.
func (cc *CacheControl) Execute(cmd memberset.Command) error {
	if cmd == nil {
		panic("cachecontrol: execute of nil command")
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	effect, regions, err := cmd.Plan(cc.members, cc.reader)
	if err != nil {
		return err
	}
	if err := effect.Commit(cc.members); err != nil {
		return err
	}
	cc.commandsExecuted.Inc()
	var merr error
	for _, r := range regions {
		for _, cube := range cc.cubes {
			if !cubeSpans(cube, r.Dimensionality()) {
				continue
			}
			crossed := region.NewCrossjoin(r, cc.CreateMeasuresRegion(cube))
			if err := cc.flushRegion(crossed); err != nil {
				if errors.Is(err, star.ErrMemberNotFound) {
					cc.logger.Warn("skipping cube with stale member reference during flush",
						zap.String("cube", cube.Name),
						zap.Error(err))
					continue
				}
				merr = multierr.Append(merr, err)
			}
		}
	}
	return merr
}

// cubeSpans reports whether every non-measures dimension in dims
// belongs to the cube.
func cubeSpans(cube *star.Cube, dims []*star.Dimension) bool {
	for _, d := range dims {
		if d.Measures {
			continue
		}
		found := false
		for _, cd := range cube.Dimensions {
			if cd == d {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// PrintCacheState dumps the segment registry for diagnostics.  The
// format is not stable.
func (cc *CacheControl) PrintCacheState(w io.Writer) {
	var b strings.Builder
	for _, cube := range cc.cubes {
		fmt.Fprintf(&b, "cube %s (star %s):\n", cube.Name, cube.Star.FactTable)
		for _, s := range cc.index.ForStar(cube.Star) {
			if s.Measure.Cube != cube {
				continue
			}
			b.WriteString("  ")
			s.Describe(&b)
			b.WriteByte('\n')
		}
	}
	io.WriteString(w, b.String())
}
