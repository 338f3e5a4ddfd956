package segment

import (
	"strings"

	"github.com/olapio/starcache/bitkey"
	"github.com/olapio/starcache/pred"
	"github.com/olapio/starcache/star"
)

// GroupingSet bundles segments that share level and measure bit-keys
// so that one SQL statement with GROUP BY GROUPING SETS can populate
// all of them.  Axes are populated lazily during SQL execution.
type GroupingSet struct {
	segments      []*Segment
	levelBitKey   bitkey.Key
	measureBitKey bitkey.Key
	predicates    []pred.ColumnPredicate
	axes          []*Axis
}

// NewGroupingSet builds a grouping set.  segments must be non-empty
// and every segment must carry the level bit-key.
func NewGroupingSet(segments []*Segment, levelBitKey, measureBitKey bitkey.Key, predicates []pred.ColumnPredicate) *GroupingSet {
	if len(segments) == 0 {
		panic("segment: grouping set requires at least one segment")
	}
	for _, s := range segments {
		if !s.BitKey().Equal(levelBitKey) {
			panic("segment: grouping set segment does not match the level bit-key")
		}
	}
	return &GroupingSet{
		segments:      segments,
		levelBitKey:   levelBitKey,
		measureBitKey: measureBitKey,
		predicates:    predicates,
	}
}

// Segment0 is the representative segment for routing failures.
func (g *GroupingSet) Segment0() *Segment { return g.segments[0] }

// Segments returns the bundled segments.
func (g *GroupingSet) Segments() []*Segment { return g.segments }

// LevelBitKey is the shared constrained-columns bit-key.
func (g *GroupingSet) LevelBitKey() bitkey.Key { return g.levelBitKey }

// MeasureBitKey covers the measures the set loads.
func (g *GroupingSet) MeasureBitKey() bitkey.Key { return g.measureBitKey }

// Predicates returns the shared per-column predicates.
func (g *GroupingSet) Predicates() []pred.ColumnPredicate { return g.predicates }

// SetAxes publishes the axes computed during SQL execution.
func (g *GroupingSet) SetAxes(axes []*Axis) { g.axes = axes }

// Axes returns the published axes, nil before execution.
func (g *GroupingSet) Axes() []*Axis { return g.axes }

// SQLGroupingSet renders this set's column list as one grouping set of
// a GROUP BY GROUPING SETS clause.
func (g *GroupingSet) SQLGroupingSet(d star.Dialect) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, c := range g.Segment0().Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Expression(d))
	}
	b.WriteByte(')')
	return b.String()
}

// Fail routes a load failure to every segment in the set.
func (g *GroupingSet) Fail(err error) {
	for _, s := range g.segments {
		s.Fail(err)
	}
}
