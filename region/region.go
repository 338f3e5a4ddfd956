// Package region implements the cell-region algebra used to express
// cache invalidation: single-member and member-range regions,
// crossjoins and unions of regions, and the normalization of a region
// tree into disjunctive normal form.
package region

import (
	"fmt"
	"strings"

	"github.com/olapio/starcache/star"
	"golang.org/x/exp/slices"
)

// CellRegion is a declarative specification of a set of
// (dimension, member) combinations.  Regions are immutable; rewrites
// share unchanged subtrees.
type CellRegion interface {
	// Dimensionality lists the dimensions the region spans, in order.
	Dimensionality() []*star.Dimension
	Describe(b *strings.Builder)
}

// DescribeString renders r's Describe output.
func DescribeString(r CellRegion) string {
	var b strings.Builder
	r.Describe(&b)
	return b.String()
}

// MemberRegion is a list of members of one dimension, optionally with
// all their descendants.
type MemberRegion struct {
	Dimension   *star.Dimension
	Members     []*star.Member
	Descendants bool
}

// NewMemberRegion builds a member region.  All members must belong to
// one hierarchy.
func NewMemberRegion(descendants bool, members ...*star.Member) *MemberRegion {
	if len(members) == 0 {
		panic("region: member region requires at least one member")
	}
	h := members[0].Hierarchy()
	for _, m := range members[1:] {
		if m.Hierarchy() != h {
			panic(fmt.Sprintf("region: members %s and %s belong to different hierarchies", members[0], m))
		}
	}
	return &MemberRegion{
		Dimension:   h.Dimension,
		Members:     members,
		Descendants: descendants,
	}
}

func (r *MemberRegion) Dimensionality() []*star.Dimension {
	return []*star.Dimension{r.Dimension}
}

func (r *MemberRegion) Describe(b *strings.Builder) {
	b.WriteString("Member(")
	for i, m := range r.Members {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(m.String())
	}
	if r.Descendants {
		b.WriteString(", descendants")
	}
	b.WriteByte(')')
}

// MemberRangeRegion is an interval of members at one level.  A nil
// bound is unbounded on that side.
type MemberRangeRegion struct {
	Level          *star.Level
	Lower, Upper   *star.Member
	LowerInclusive bool
	UpperInclusive bool
	Descendants    bool
}

// NewMemberRangeRegion builds a member-range region.  Present bounds
// must belong to level.
func NewMemberRangeRegion(level *star.Level, lower *star.Member, lowerInclusive bool, upper *star.Member, upperInclusive bool, descendants bool) *MemberRangeRegion {
	if level == nil {
		panic("region: member range requires a level")
	}
	if lower == nil && lowerInclusive {
		panic("region: inclusive lower bound requires a member")
	}
	if upper == nil && upperInclusive {
		panic("region: inclusive upper bound requires a member")
	}
	if lower != nil && lower.Level != level {
		panic(fmt.Sprintf("region: lower bound %s is not at level %s", lower, level))
	}
	if upper != nil && upper.Level != level {
		panic(fmt.Sprintf("region: upper bound %s is not at level %s", upper, level))
	}
	return &MemberRangeRegion{
		Level:          level,
		Lower:          lower,
		Upper:          upper,
		LowerInclusive: lowerInclusive,
		UpperInclusive: upperInclusive,
		Descendants:    descendants,
	}
}

func (r *MemberRangeRegion) Dimensionality() []*star.Dimension {
	return []*star.Dimension{r.Level.Hierarchy.Dimension}
}

func (r *MemberRangeRegion) Describe(b *strings.Builder) {
	b.WriteString("Range(")
	if r.Lower != nil {
		fmt.Fprintf(b, "%s %s", r.Lower, inclusivity(r.LowerInclusive))
	} else {
		b.WriteString("-inf")
	}
	b.WriteString(" to ")
	if r.Upper != nil {
		fmt.Fprintf(b, "%s %s", r.Upper, inclusivity(r.UpperInclusive))
	} else {
		b.WriteString("+inf")
	}
	if r.Descendants {
		b.WriteString(", descendants")
	}
	b.WriteByte(')')
}

func inclusivity(inclusive bool) string {
	if inclusive {
		return "inclusive"
	}
	return "exclusive"
}

// CrossjoinRegion is the cartesian product of its components.  The
// component list is flat (no component is itself a crossjoin) and the
// component dimensionalities are pairwise disjoint.
type CrossjoinRegion struct {
	Components []CellRegion
}

// NewCrossjoin builds a crossjoin, flattening nested crossjoins.  A
// crossjoin over any empty region is empty.  Overlapping component
// dimensionality is a caller bug.
func NewCrossjoin(regions ...CellRegion) CellRegion {
	if len(regions) < 2 {
		panic("region: crossjoin requires at least two regions")
	}
	var components []CellRegion
	for _, r := range regions {
		if r == nil {
			panic("region: nil region in crossjoin")
		}
		if cj, ok := r.(*CrossjoinRegion); ok {
			components = append(components, cj.Components...)
		} else {
			components = append(components, r)
		}
	}
	var dims []*star.Dimension
	seen := map[*star.Dimension]bool{}
	empty := false
	for _, c := range components {
		if _, ok := c.(*EmptyRegion); ok {
			empty = true
		}
		for _, d := range c.Dimensionality() {
			if seen[d] {
				panic(fmt.Sprintf("region: dimension %s appears in more than one crossjoin component", d))
			}
			seen[d] = true
			dims = append(dims, d)
		}
	}
	if empty {
		return &EmptyRegion{Dims: dims}
	}
	return &CrossjoinRegion{Components: components}
}

func (r *CrossjoinRegion) Dimensionality() []*star.Dimension {
	var dims []*star.Dimension
	for _, c := range r.Components {
		dims = append(dims, c.Dimensionality()...)
	}
	return dims
}

func (r *CrossjoinRegion) Describe(b *strings.Builder) {
	b.WriteString("Crossjoin(")
	for i, c := range r.Components {
		if i > 0 {
			b.WriteString(", ")
		}
		c.Describe(b)
	}
	b.WriteByte(')')
}

// UnionRegion is the union of regions of identical dimensionality.
type UnionRegion struct {
	Regions []CellRegion
}

// NewUnion builds a union.  All regions must report the same
// dimensionality list; empty regions are dropped.
func NewUnion(regions ...CellRegion) CellRegion {
	if len(regions) < 2 {
		panic("region: union requires at least two regions")
	}
	dims := regions[0].Dimensionality()
	var kept []CellRegion
	for _, r := range regions {
		if r == nil {
			panic("region: nil region in union")
		}
		if !slices.Equal(dims, r.Dimensionality()) {
			panic(fmt.Sprintf("region: union of mismatched dimensionality %v and %v",
				regions[0].Dimensionality(), r.Dimensionality()))
		}
		if _, ok := r.(*EmptyRegion); ok {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return &EmptyRegion{Dims: dims}
	}
	return &UnionRegion{Regions: kept}
}

func (r *UnionRegion) Dimensionality() []*star.Dimension {
	return r.Regions[0].Dimensionality()
}

func (r *UnionRegion) Describe(b *strings.Builder) {
	b.WriteString("Union(")
	for i, c := range r.Regions {
		if i > 0 {
			b.WriteString(", ")
		}
		c.Describe(b)
	}
	b.WriteByte(')')
}

// EmptyRegion denotes no cells over the given dimensionality.
type EmptyRegion struct {
	Dims []*star.Dimension
}

func (r *EmptyRegion) Dimensionality() []*star.Dimension { return r.Dims }

func (r *EmptyRegion) Describe(b *strings.Builder) {
	b.WriteString("Empty()")
}
