package pred

import (
	"fmt"
	"strings"

	"github.com/olapio/starcache/bitkey"
	"github.com/olapio/starcache/star"
)

// RangePredicate constrains a column to an interval.  A nil bound is
// unbounded on that side; an inclusive flag on an absent bound is a
// caller bug.
type RangePredicate struct {
	column         *star.Column
	lower, upper   any
	hasLower       bool
	hasUpper       bool
	lowerInclusive bool
	upperInclusive bool
}

var _ ColumnPredicate = (*RangePredicate)(nil)

// NewRange builds a range predicate.  Pass nil for an absent bound.
func NewRange(column *star.Column, lower any, lowerInclusive bool, upper any, upperInclusive bool) *RangePredicate {
	if column == nil {
		panic("pred: range predicate requires a column")
	}
	if lower == nil && lowerInclusive {
		panic("pred: inclusive lower bound requires a bound value")
	}
	if upper == nil && upperInclusive {
		panic("pred: inclusive upper bound requires a bound value")
	}
	return &RangePredicate{
		column:         column,
		lower:          lower,
		upper:          upper,
		hasLower:       lower != nil,
		hasUpper:       upper != nil,
		lowerInclusive: lowerInclusive,
		upperInclusive: upperInclusive,
	}
}

func (p *RangePredicate) Column() *star.Column               { return p.column }
func (p *RangePredicate) ConstrainedColumns() []*star.Column { return []*star.Column{p.column} }
func (p *RangePredicate) BitKey() bitkey.Key                 { return bitKeyOf(p.ConstrainedColumns()) }

func (p *RangePredicate) EvaluateValue(v any) bool {
	if p.hasLower {
		c := star.CompareValues(v, p.lower)
		if c < 0 || (c == 0 && !p.lowerInclusive) {
			return false
		}
	}
	if p.hasUpper {
		c := star.CompareValues(v, p.upper)
		if c > 0 || (c == 0 && !p.upperInclusive) {
			return false
		}
	}
	return true
}

func (p *RangePredicate) Evaluate(row Row) bool {
	v, ok := row[p.column]
	return ok && p.EvaluateValue(v)
}

// Values cannot enumerate an interval.
func (p *RangePredicate) Values() ([]any, error) {
	return nil, fmt.Errorf("%w: range over %s", ErrValuesUnsupported, p.column)
}

func (p *RangePredicate) Overlap(other ColumnPredicate) (Overlap, error) {
	if other.Column() != p.column {
		return 0, fmt.Errorf("%w: different columns %s and %s", ErrIntersectUnsupported, p.column, other.Column())
	}
	switch other := other.(type) {
	case *ValuePredicate:
		if !p.EvaluateValue(other.value) {
			return OverlapDisjoint, nil
		}
		if p.isPoint() {
			return OverlapEqual, nil
		}
		return OverlapSuperset, nil
	case *MemberPredicate:
		return p.Overlap(other.asValue())
	case *RangePredicate:
		return p.overlapRange(other), nil
	}
	return 0, ErrIntersectUnsupported
}

// overlapRange classifies two intervals over the same column by exact
// sub-range computation.
func (p *RangePredicate) overlapRange(o *RangePredicate) Overlap {
	if p.disjointWith(o) || o.disjointWith(p) {
		return OverlapDisjoint
	}
	pInO := o.containsRange(p)
	oInP := p.containsRange(o)
	switch {
	case pInO && oInP:
		return OverlapEqual
	case pInO:
		return OverlapSubset
	case oInP:
		return OverlapSuperset
	}
	return OverlapPartial
}

// disjointWith reports whether p lies entirely below o.
func (p *RangePredicate) disjointWith(o *RangePredicate) bool {
	if !p.hasUpper || !o.hasLower {
		return false
	}
	c := star.CompareValues(p.upper, o.lower)
	return c < 0 || (c == 0 && !(p.upperInclusive && o.lowerInclusive))
}

// containsRange reports whether p's interval contains o's.
func (p *RangePredicate) containsRange(o *RangePredicate) bool {
	if p.hasLower {
		if !o.hasLower {
			return false
		}
		c := star.CompareValues(p.lower, o.lower)
		if c > 0 || (c == 0 && !p.lowerInclusive && o.lowerInclusive) {
			return false
		}
	}
	if p.hasUpper {
		if !o.hasUpper {
			return false
		}
		c := star.CompareValues(p.upper, o.upper)
		if c < 0 || (c == 0 && !p.upperInclusive && o.upperInclusive) {
			return false
		}
	}
	return true
}

func (p *RangePredicate) isPoint() bool {
	return p.hasLower && p.hasUpper && p.lowerInclusive && p.upperInclusive &&
		star.CompareValues(p.lower, p.upper) == 0
}

func (p *RangePredicate) Minus(other Predicate) Predicate {
	return NewMinus(p, other)
}

func (p *RangePredicate) CloneWithColumn(c *star.Column) ColumnPredicate {
	clone := *p
	clone.column = c
	return &clone
}

func (p *RangePredicate) Describe(b *strings.Builder) {
	b.WriteString("Range(")
	b.WriteString(p.column.String())
	b.WriteString(": ")
	if p.hasLower {
		fmt.Fprintf(b, "%v %s", p.lower, inclusivity(p.lowerInclusive))
	} else {
		b.WriteString("-inf")
	}
	b.WriteString(" to ")
	if p.hasUpper {
		fmt.Fprintf(b, "%v %s", p.upper, inclusivity(p.upperInclusive))
	} else {
		b.WriteString("+inf")
	}
	b.WriteByte(')')
}

func inclusivity(inclusive bool) string {
	if inclusive {
		return "inclusive"
	}
	return "exclusive"
}

func (p *RangePredicate) ToSQL(d star.Dialect, b *strings.Builder) {
	expr := p.column.Expression(d)
	wrote := false
	if p.hasLower {
		b.WriteString(expr)
		if p.lowerInclusive {
			b.WriteString(" >= ")
		} else {
			b.WriteString(" > ")
		}
		b.WriteString(d.QuoteValue(p.lower))
		wrote = true
	}
	if p.hasUpper {
		if wrote {
			b.WriteString(" and ")
		}
		b.WriteString(expr)
		if p.upperInclusive {
			b.WriteString(" <= ")
		} else {
			b.WriteString(" < ")
		}
		b.WriteString(d.QuoteValue(p.upper))
		wrote = true
	}
	if !wrote {
		// Unbounded on both sides constrains nothing.
		b.WriteString("1 = 1")
	}
}

func (p *RangePredicate) Hash() uint64           { return hashDescription(p) }
func (p *RangePredicate) Equal(o Predicate) bool { return equalDescription(p, o) }
