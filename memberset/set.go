// Package memberset implements the member-set algebra and the
// two-phase member-edit commands (plan, then commit) that keep cell
// flush correct under the single member-mutation lock.
package memberset

import (
	"fmt"
	"strings"

	"github.com/olapio/starcache/star"
)

// MemberReader navigates the member hierarchy.  It is implemented by
// the engine's member cache; this package only consumes it to compute
// invalidation regions and range membership.
type MemberReader interface {
	Children(m *star.Member) ([]*star.Member, error)
	LevelMembers(l *star.Level) ([]*star.Member, error)
}

// MemberSet is a declarative specification of a set of hierarchy
// members, distinct from a cell region: member sets drive member-cache
// edits, cell regions drive cell-cache flush.
type MemberSet interface {
	// Filter returns the subset of the set at the given level.
	Filter(level *star.Level, reader MemberReader) (MemberSet, error)
	// Members enumerates the set.
	Members(reader MemberReader) ([]*star.Member, error)
	Describe(b *strings.Builder)
}

// DescribeString renders s's Describe output.
func DescribeString(s MemberSet) string {
	var b strings.Builder
	s.Describe(&b)
	return b.String()
}

// SimpleSet is an explicit list of members of one hierarchy,
// optionally with their descendants.
type SimpleSet struct {
	Hierarchy   *star.Hierarchy
	MemberList  []*star.Member
	Descendants bool
}

// NewSimpleSet builds a simple set.  All members must belong to one
// hierarchy.
func NewSimpleSet(descendants bool, members ...*star.Member) *SimpleSet {
	if len(members) == 0 {
		panic("memberset: simple set requires at least one member")
	}
	h := members[0].Hierarchy()
	for _, m := range members[1:] {
		if m.Hierarchy() != h {
			panic(fmt.Sprintf("memberset: members %s and %s belong to different hierarchies", members[0], m))
		}
	}
	return &SimpleSet{Hierarchy: h, MemberList: members, Descendants: descendants}
}

func (s *SimpleSet) Filter(level *star.Level, reader MemberReader) (MemberSet, error) {
	var kept []*star.Member
	for _, m := range s.MemberList {
		if m.Level == level {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return Empty(), nil
	}
	return &SimpleSet{Hierarchy: s.Hierarchy, MemberList: kept, Descendants: s.Descendants}, nil
}

func (s *SimpleSet) Members(reader MemberReader) ([]*star.Member, error) {
	if !s.Descendants {
		return s.MemberList, nil
	}
	var out []*star.Member
	var walk func(m *star.Member) error
	walk = func(m *star.Member) error {
		out = append(out, m)
		children, err := reader.Children(m)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, m := range s.MemberList {
		if err := walk(m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SimpleSet) Describe(b *strings.Builder) {
	b.WriteString("Set(")
	for i, m := range s.MemberList {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(m.String())
	}
	if s.Descendants {
		b.WriteString(", descendants")
	}
	b.WriteByte(')')
}

// UnionSet is the union of member sets.
type UnionSet struct {
	Items []MemberSet
}

func NewUnionSet(items ...MemberSet) *UnionSet {
	if len(items) < 2 {
		panic("memberset: union requires at least two sets")
	}
	return &UnionSet{Items: items}
}

func (s *UnionSet) Filter(level *star.Level, reader MemberReader) (MemberSet, error) {
	var kept []MemberSet
	for _, item := range s.Items {
		filtered, err := item.Filter(level, reader)
		if err != nil {
			return nil, err
		}
		if _, empty := filtered.(*EmptySet); !empty {
			kept = append(kept, filtered)
		}
	}
	switch len(kept) {
	case 0:
		return Empty(), nil
	case 1:
		return kept[0], nil
	}
	return &UnionSet{Items: kept}, nil
}

func (s *UnionSet) Members(reader MemberReader) ([]*star.Member, error) {
	var out []*star.Member
	for _, item := range s.Items {
		members, err := item.Members(reader)
		if err != nil {
			return nil, err
		}
		out = append(out, members...)
	}
	return out, nil
}

func (s *UnionSet) Describe(b *strings.Builder) {
	b.WriteString("Union(")
	for i, item := range s.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		item.Describe(b)
	}
	b.WriteByte(')')
}

// RangeSet is an interval of members at one level, optionally with
// descendants.  A nil bound is unbounded on that side.
type RangeSet struct {
	Level          *star.Level
	Lower, Upper   *star.Member
	LowerInclusive bool
	UpperInclusive bool
	Descendants    bool
}

func NewRangeSet(level *star.Level, lower *star.Member, lowerInclusive bool, upper *star.Member, upperInclusive bool, descendants bool) *RangeSet {
	if level == nil {
		panic("memberset: range set requires a level")
	}
	if lower != nil && lower.Level != level {
		panic(fmt.Sprintf("memberset: lower bound %s is not at level %s", lower, level))
	}
	if upper != nil && upper.Level != level {
		panic(fmt.Sprintf("memberset: upper bound %s is not at level %s", upper, level))
	}
	if lower == nil && lowerInclusive {
		panic("memberset: inclusive lower bound requires a member")
	}
	if upper == nil && upperInclusive {
		panic("memberset: inclusive upper bound requires a member")
	}
	return &RangeSet{
		Level:          level,
		Lower:          lower,
		Upper:          upper,
		LowerInclusive: lowerInclusive,
		UpperInclusive: upperInclusive,
		Descendants:    descendants,
	}
}

// Filter walks the range's bounds down the hierarchy in lock step
// until the sought level is reached: the lower bound descends to its
// first child, the upper bound to its last.  If either bound has no
// children at an intermediate level the result is empty.  Filtering to
// a shallower level, or to a deeper level without descendants, is
// empty.
func (s *RangeSet) Filter(level *star.Level, reader MemberReader) (MemberSet, error) {
	if level == s.Level {
		return s, nil
	}
	if level.Hierarchy != s.Level.Hierarchy || level.Depth < s.Level.Depth || !s.Descendants {
		return Empty(), nil
	}
	lower, upper := s.Lower, s.Upper
	lowerInc, upperInc := s.LowerInclusive, s.UpperInclusive
	for cur := s.Level; cur != level; {
		var next *star.Level
		for _, l := range cur.Hierarchy.Levels {
			if l.Depth == cur.Depth+1 {
				next = l
				break
			}
		}
		if next == nil {
			return Empty(), nil
		}
		if lower != nil {
			children, err := reader.Children(lower)
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				return Empty(), nil
			}
			lower = children[0]
			lowerInc = true
		}
		if upper != nil {
			children, err := reader.Children(upper)
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				return Empty(), nil
			}
			upper = children[len(children)-1]
			upperInc = true
		}
		cur = next
	}
	return NewRangeSet(level, lower, lowerInc, upper, upperInc, false), nil
}

// Members enumerates the level's members between the bounds, in level
// order.
func (s *RangeSet) Members(reader MemberReader) ([]*star.Member, error) {
	all, err := reader.LevelMembers(s.Level)
	if err != nil {
		return nil, err
	}
	started := s.Lower == nil
	var out []*star.Member
	for _, m := range all {
		if !started {
			if m == s.Lower {
				started = true
				if s.LowerInclusive {
					out = append(out, m)
				}
			}
			continue
		}
		if m == s.Upper {
			if s.UpperInclusive {
				out = append(out, m)
			}
			break
		}
		out = append(out, m)
	}
	if s.Descendants {
		base := out
		out = nil
		for _, m := range base {
			out = append(out, m)
			if err := appendDescendants(reader, m, &out); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func appendDescendants(reader MemberReader, m *star.Member, out *[]*star.Member) error {
	children, err := reader.Children(m)
	if err != nil {
		return err
	}
	for _, c := range children {
		*out = append(*out, c)
		if err := appendDescendants(reader, c, out); err != nil {
			return err
		}
	}
	return nil
}

func (s *RangeSet) Describe(b *strings.Builder) {
	b.WriteString("Range(")
	if s.Lower != nil {
		fmt.Fprintf(b, "%s %s", s.Lower, inclusivity(s.LowerInclusive))
	} else {
		b.WriteString("-inf")
	}
	b.WriteString(" to ")
	if s.Upper != nil {
		fmt.Fprintf(b, "%s %s", s.Upper, inclusivity(s.UpperInclusive))
	} else {
		b.WriteString("+inf")
	}
	if s.Descendants {
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

// EmptySet is the empty member set.
type EmptySet struct{}

var emptySet = &EmptySet{}

// Empty returns the empty set singleton.
func Empty() *EmptySet { return emptySet }

func (*EmptySet) Filter(*star.Level, MemberReader) (MemberSet, error) { return emptySet, nil }
func (*EmptySet) Members(MemberReader) ([]*star.Member, error)       { return nil, nil }
func (*EmptySet) Describe(b *strings.Builder)                        { b.WriteString("Empty()") }
