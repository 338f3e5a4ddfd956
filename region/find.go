package region

import (
	"strings"

	"github.com/olapio/starcache/star"
	"golang.org/x/exp/slices"
)

// SegmentColumn names a star column together with the set of key
// values a region constrains it to.  A wildcard column is
// unconstrained: any value of that column may be affected.
type SegmentColumn struct {
	Column   *star.Column
	Values   []any
	Wildcard bool
}

func (c SegmentColumn) Describe(b *strings.Builder) {
	b.WriteString(c.Column.String())
	if c.Wildcard {
		b.WriteString("=*")
		return
	}
	b.WriteString("={")
	for i, v := range c.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		if v == nil {
			b.WriteString("null")
		} else {
			b.WriteString(star.AnsiDialect{}.QuoteValue(v))
		}
	}
	b.WriteByte('}')
}

// FindMeasures collects all Measures-dimension members referenced
// anywhere in the region tree.  The affected physical stars are
// derived from these.
func FindMeasures(r CellRegion) []*star.Member {
	var measures []*star.Member
	seen := map[*star.Member]bool{}
	walkRegions(r, func(r CellRegion) {
		m, ok := r.(*MemberRegion)
		if !ok || !m.Dimension.Measures {
			return
		}
		for _, member := range m.Members {
			if !seen[member] {
				seen[member] = true
				measures = append(measures, member)
			}
		}
	})
	return measures
}

// FindAxisValues collects, per non-measures level key column, the set
// of distinct key values the region references, walking each member to
// its root and skipping all levels.  Member ranges collapse to a
// wildcard rather than an exact key interval; the loss of precision is
// deliberate and only ever widens the affected set.  Values are sorted
// with the null-safe comparator to match the cache's axis ordering;
// columns are ordered by bit position.
func FindAxisValues(r CellRegion) []SegmentColumn {
	values := map[*star.Column][]any{}
	wildcards := map[*star.Column]bool{}
	addValue := func(c *star.Column, v any) {
		for _, existing := range values[c] {
			if star.CompareValues(existing, v) == 0 {
				return
			}
		}
		values[c] = append(values[c], v)
	}
	addAncestors := func(m *star.Member) {
		for a := m; a != nil && !a.IsAll(); a = a.Parent {
			if a.Level.Column != nil {
				addValue(a.Level.Column, a.Key)
			}
		}
	}
	walkRegions(r, func(r CellRegion) {
		switch r := r.(type) {
		case *MemberRegion:
			if r.Dimension.Measures {
				return
			}
			for _, m := range r.Members {
				addAncestors(m)
			}
			if r.Descendants {
				// Anything below the named members may be affected.
				level := r.Members[0].Level
				for _, deeper := range level.Hierarchy.Levels {
					if deeper.Depth > level.Depth && deeper.Column != nil {
						wildcards[deeper.Column] = true
					}
				}
			}
		case *MemberRangeRegion:
			if r.Level.Column != nil {
				wildcards[r.Level.Column] = true
			}
			if r.Lower != nil {
				addAncestors(r.Lower.Parent)
			}
			if r.Upper != nil {
				addAncestors(r.Upper.Parent)
			}
			if r.Descendants {
				for _, deeper := range r.Level.Hierarchy.Levels {
					if deeper.Depth > r.Level.Depth && deeper.Column != nil {
						wildcards[deeper.Column] = true
					}
				}
			}
		}
	})
	var columns []*star.Column
	for c := range values {
		columns = append(columns, c)
	}
	for c := range wildcards {
		if _, ok := values[c]; !ok {
			columns = append(columns, c)
		}
	}
	sortColumns(columns)
	out := make([]SegmentColumn, 0, len(columns))
	for _, c := range columns {
		if wildcards[c] {
			out = append(out, SegmentColumn{Column: c, Wildcard: true})
			continue
		}
		vs := values[c]
		star.SortValues(vs)
		out = append(out, SegmentColumn{Column: c, Values: vs})
	}
	return out
}

func sortColumns(columns []*star.Column) {
	slices.SortFunc(columns, func(a, b *star.Column) bool {
		return a.Bit < b.Bit
	})
}

// walkRegions visits every node of the region tree depth-first.
func walkRegions(r CellRegion, visit func(CellRegion)) {
	visit(r)
	switch r := r.(type) {
	case *CrossjoinRegion:
		for _, c := range r.Components {
			walkRegions(c, visit)
		}
	case *UnionRegion:
		for _, c := range r.Regions {
			walkRegions(c, visit)
		}
	}
}
