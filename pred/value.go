package pred

import (
	"fmt"
	"strings"

	"github.com/olapio/starcache/bitkey"
	"github.com/olapio/starcache/star"
)

// ValuePredicate constrains a column to a single value, possibly nil
// (database NULL).
type ValuePredicate struct {
	column *star.Column
	value  any
}

var _ ColumnPredicate = (*ValuePredicate)(nil)

func NewValue(column *star.Column, value any) *ValuePredicate {
	if column == nil {
		panic("pred: value predicate requires a column")
	}
	return &ValuePredicate{column: column, value: value}
}

func (p *ValuePredicate) Column() *star.Column              { return p.column }
func (p *ValuePredicate) Value() any                        { return p.value }
func (p *ValuePredicate) ConstrainedColumns() []*star.Column { return []*star.Column{p.column} }
func (p *ValuePredicate) BitKey() bitkey.Key                { return bitKeyOf(p.ConstrainedColumns()) }

func (p *ValuePredicate) EvaluateValue(v any) bool {
	return star.CompareValues(v, p.value) == 0
}

func (p *ValuePredicate) Evaluate(row Row) bool {
	v, ok := row[p.column]
	return ok && p.EvaluateValue(v)
}

func (p *ValuePredicate) Values() ([]any, error) {
	return []any{p.value}, nil
}

func (p *ValuePredicate) Overlap(other ColumnPredicate) (Overlap, error) {
	if other.Column() != p.column {
		return 0, fmt.Errorf("%w: different columns %s and %s", ErrIntersectUnsupported, p.column, other.Column())
	}
	switch other := other.(type) {
	case *ValuePredicate:
		if p.EvaluateValue(other.value) {
			return OverlapEqual, nil
		}
		return OverlapDisjoint, nil
	case *RangePredicate:
		o, err := other.Overlap(p)
		return flip(o), err
	case *ListPredicate:
		o, err := other.Overlap(p)
		return flip(o), err
	}
	return 0, ErrIntersectUnsupported
}

func (p *ValuePredicate) Minus(other Predicate) Predicate {
	if other, ok := other.(*ValuePredicate); ok && other.column == p.column {
		if p.EvaluateValue(other.value) {
			return False()
		}
		return p
	}
	return NewMinus(p, other)
}

func (p *ValuePredicate) CloneWithColumn(c *star.Column) ColumnPredicate {
	return NewValue(c, p.value)
}

func (p *ValuePredicate) Describe(b *strings.Builder) {
	fmt.Fprintf(b, "%s = %v", p.column, p.value)
}

func (p *ValuePredicate) ToSQL(d star.Dialect, b *strings.Builder) {
	if p.value == nil {
		b.WriteString(p.column.Expression(d))
		b.WriteString(" is null")
		return
	}
	b.WriteString(p.column.Expression(d))
	b.WriteString(" = ")
	b.WriteString(d.QuoteValue(p.value))
}

func (p *ValuePredicate) Hash() uint64          { return hashDescription(p) }
func (p *ValuePredicate) Equal(o Predicate) bool { return equalDescription(p, o) }

// flip mirrors an Overlap computed with swapped operands.
func flip(o Overlap) Overlap {
	switch o {
	case OverlapSubset:
		return OverlapSuperset
	case OverlapSuperset:
		return OverlapSubset
	}
	return o
}

// MemberPredicate constrains a level's key column to a member's key
// value.  It keeps the member reference so invalidation paths can
// reason about hierarchy position.
type MemberPredicate struct {
	column *star.Column
	member *star.Member
}

var _ ColumnPredicate = (*MemberPredicate)(nil)

func NewMember(m *star.Member) *MemberPredicate {
	if m == nil || m.Level.Column == nil {
		panic("pred: member predicate requires a member with a base column")
	}
	return &MemberPredicate{column: m.Level.Column, member: m}
}

func (p *MemberPredicate) Column() *star.Column               { return p.column }
func (p *MemberPredicate) Member() *star.Member               { return p.member }
func (p *MemberPredicate) ConstrainedColumns() []*star.Column { return []*star.Column{p.column} }
func (p *MemberPredicate) BitKey() bitkey.Key                 { return bitKeyOf(p.ConstrainedColumns()) }

func (p *MemberPredicate) EvaluateValue(v any) bool {
	return star.CompareValues(v, p.member.Key) == 0
}

func (p *MemberPredicate) Evaluate(row Row) bool {
	v, ok := row[p.column]
	return ok && p.EvaluateValue(v)
}

func (p *MemberPredicate) Values() ([]any, error) {
	return []any{p.member.Key}, nil
}

func (p *MemberPredicate) Overlap(other ColumnPredicate) (Overlap, error) {
	return p.asValue().Overlap(other)
}

func (p *MemberPredicate) Minus(other Predicate) Predicate {
	return p.asValue().Minus(other)
}

func (p *MemberPredicate) CloneWithColumn(c *star.Column) ColumnPredicate {
	return &MemberPredicate{column: c, member: p.member}
}

func (p *MemberPredicate) asValue() *ValuePredicate {
	return NewValue(p.column, p.member.Key)
}

func (p *MemberPredicate) Describe(b *strings.Builder) {
	fmt.Fprintf(b, "Member(%s)", p.member)
}

func (p *MemberPredicate) ToSQL(d star.Dialect, b *strings.Builder) {
	p.asValue().ToSQL(d, b)
}

func (p *MemberPredicate) Hash() uint64           { return hashDescription(p) }
func (p *MemberPredicate) Equal(o Predicate) bool { return equalDescription(p, o) }
