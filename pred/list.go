package pred

import (
	"fmt"
	"strings"

	"github.com/olapio/starcache/bitkey"
	"github.com/olapio/starcache/star"
)

// ListPredicate is an OR of column predicates over one column,
// typically a set of values rendered as a SQL IN list.
type ListPredicate struct {
	column   *star.Column
	children []ColumnPredicate
}

var _ ColumnPredicate = (*ListPredicate)(nil)

// NewList builds a list predicate.  All children must constrain
// column.
func NewList(column *star.Column, children ...ColumnPredicate) *ListPredicate {
	if column == nil {
		panic("pred: list predicate requires a column")
	}
	for _, c := range children {
		if c.Column() != column {
			panic(fmt.Sprintf("pred: list child constrains %s, not %s", c.Column(), column))
		}
	}
	return &ListPredicate{column: column, children: children}
}

// NewValueList builds a list of value predicates over one column.
func NewValueList(column *star.Column, values ...any) *ListPredicate {
	children := make([]ColumnPredicate, 0, len(values))
	for _, v := range values {
		children = append(children, NewValue(column, v))
	}
	return NewList(column, children...)
}

func (p *ListPredicate) Column() *star.Column               { return p.column }
func (p *ListPredicate) Children() []ColumnPredicate        { return p.children }
func (p *ListPredicate) ConstrainedColumns() []*star.Column { return []*star.Column{p.column} }
func (p *ListPredicate) BitKey() bitkey.Key                 { return bitKeyOf(p.ConstrainedColumns()) }

func (p *ListPredicate) EvaluateValue(v any) bool {
	for _, c := range p.children {
		if c.EvaluateValue(v) {
			return true
		}
	}
	return false
}

func (p *ListPredicate) Evaluate(row Row) bool {
	v, ok := row[p.column]
	return ok && p.EvaluateValue(v)
}

func (p *ListPredicate) Values() ([]any, error) {
	values := make([]any, 0, len(p.children))
	for _, c := range p.children {
		vs, err := c.Values()
		if err != nil {
			return nil, err
		}
		values = append(values, vs...)
	}
	return values, nil
}

func (p *ListPredicate) Overlap(other ColumnPredicate) (Overlap, error) {
	if other.Column() != p.column {
		return 0, fmt.Errorf("%w: different columns %s and %s", ErrIntersectUnsupported, p.column, other.Column())
	}
	mine, err := p.Values()
	if err != nil {
		return 0, ErrIntersectUnsupported
	}
	theirs, err := other.Values()
	if err != nil {
		return 0, ErrIntersectUnsupported
	}
	return classifySets(mine, theirs), nil
}

// classifySets compares two explicit value sets.
func classifySets(mine, theirs []any) Overlap {
	contains := func(set []any, v any) bool {
		for _, s := range set {
			if star.CompareValues(s, v) == 0 {
				return true
			}
		}
		return false
	}
	var shared, mineOnly, theirsOnly int
	for _, v := range mine {
		if contains(theirs, v) {
			shared++
		} else {
			mineOnly++
		}
	}
	for _, v := range theirs {
		if !contains(mine, v) {
			theirsOnly++
		}
	}
	switch {
	case shared == 0:
		return OverlapDisjoint
	case mineOnly == 0 && theirsOnly == 0:
		return OverlapEqual
	case mineOnly == 0:
		return OverlapSubset
	case theirsOnly == 0:
		return OverlapSuperset
	}
	return OverlapPartial
}

func (p *ListPredicate) Minus(other Predicate) Predicate {
	if other, ok := other.(ColumnPredicate); ok && other.Column() == p.column {
		var kept []ColumnPredicate
		for _, c := range p.children {
			vs, err := c.Values()
			if err != nil {
				return NewMinus(p, other)
			}
			removed := true
			for _, v := range vs {
				if !other.EvaluateValue(v) {
					removed = false
				}
			}
			if !removed {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			return False()
		}
		return NewList(p.column, kept...)
	}
	return NewMinus(p, other)
}

func (p *ListPredicate) CloneWithColumn(c *star.Column) ColumnPredicate {
	children := make([]ColumnPredicate, len(p.children))
	for i, child := range p.children {
		children[i] = child.CloneWithColumn(c)
	}
	return NewList(c, children...)
}

func (p *ListPredicate) Describe(b *strings.Builder) {
	b.WriteString("List(")
	for i, c := range p.children {
		if i > 0 {
			b.WriteString(", ")
		}
		c.Describe(b)
	}
	b.WriteByte(')')
}

func (p *ListPredicate) ToSQL(d star.Dialect, b *strings.Builder) {
	values, err := p.Values()
	if err != nil {
		// Fall back to an OR chain when a child cannot enumerate.
		for i, c := range p.children {
			if i > 0 {
				b.WriteString(" or ")
			}
			b.WriteByte('(')
			c.ToSQL(d, b)
			b.WriteByte(')')
		}
		return
	}
	var hasNull bool
	nonNull := values[:0:0]
	for _, v := range values {
		if v == nil {
			hasNull = true
		} else {
			nonNull = append(nonNull, v)
		}
	}
	expr := p.column.Expression(d)
	if hasNull {
		b.WriteByte('(')
		b.WriteString(expr)
		b.WriteString(" is null")
		if len(nonNull) > 0 {
			b.WriteString(" or ")
		}
	}
	switch len(nonNull) {
	case 0:
	case 1:
		b.WriteString(expr)
		b.WriteString(" = ")
		b.WriteString(d.QuoteValue(nonNull[0]))
	default:
		b.WriteString(expr)
		b.WriteString(" in (")
		for i, v := range nonNull {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.QuoteValue(v))
		}
		b.WriteByte(')')
	}
	if hasNull {
		b.WriteByte(')')
	}
}

func (p *ListPredicate) Hash() uint64           { return hashDescription(p) }
func (p *ListPredicate) Equal(o Predicate) bool { return equalDescription(p, o) }
