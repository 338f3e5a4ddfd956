package pred

import (
	"strings"

	"github.com/olapio/starcache/bitkey"
	"github.com/olapio/starcache/star"
)

// AndPredicate is the conjunction of its children.  Evaluate is true
// only when every child is true.
type AndPredicate struct {
	children []Predicate
}

// OrPredicate is the disjunction of its children.
type OrPredicate struct {
	children []Predicate
}

var (
	_ Predicate = (*AndPredicate)(nil)
	_ Predicate = (*OrPredicate)(nil)
)

func NewAnd(children ...Predicate) *AndPredicate {
	if len(children) == 0 {
		panic("pred: And requires at least one child")
	}
	return &AndPredicate{children: children}
}

func NewOr(children ...Predicate) *OrPredicate {
	if len(children) == 0 {
		panic("pred: Or requires at least one child")
	}
	return &OrPredicate{children: children}
}

func (p *AndPredicate) Children() []Predicate { return p.children }
func (p *OrPredicate) Children() []Predicate  { return p.children }

func (p *AndPredicate) ConstrainedColumns() []*star.Column { return unionColumns(p.children) }
func (p *OrPredicate) ConstrainedColumns() []*star.Column  { return unionColumns(p.children) }

func (p *AndPredicate) BitKey() bitkey.Key { return bitKeyOf(p.ConstrainedColumns()) }
func (p *OrPredicate) BitKey() bitkey.Key  { return bitKeyOf(p.ConstrainedColumns()) }

func (p *AndPredicate) Evaluate(row Row) bool {
	for _, c := range p.children {
		if !c.Evaluate(row) {
			return false
		}
	}
	return true
}

func (p *OrPredicate) Evaluate(row Row) bool {
	for _, c := range p.children {
		if c.Evaluate(row) {
			return true
		}
	}
	return false
}

func (p *AndPredicate) Minus(other Predicate) Predicate { return NewMinus(p, other) }
func (p *OrPredicate) Minus(other Predicate) Predicate  { return NewMinus(p, other) }

func (p *AndPredicate) Describe(b *strings.Builder) { describeComposite(b, "And", p.children) }
func (p *OrPredicate) Describe(b *strings.Builder)  { describeComposite(b, "Or", p.children) }

func (p *AndPredicate) ToSQL(d star.Dialect, b *strings.Builder) {
	sqlComposite(d, b, " and ", p.children)
}

func (p *OrPredicate) ToSQL(d star.Dialect, b *strings.Builder) {
	sqlComposite(d, b, " or ", p.children)
}

func (p *AndPredicate) Hash() uint64           { return hashDescription(p) }
func (p *AndPredicate) Equal(o Predicate) bool { return equalDescription(p, o) }
func (p *OrPredicate) Hash() uint64            { return hashDescription(p) }
func (p *OrPredicate) Equal(o Predicate) bool  { return equalDescription(p, o) }

func describeComposite(b *strings.Builder, name string, children []Predicate) {
	b.WriteString(name)
	b.WriteByte('(')
	for i, c := range children {
		if i > 0 {
			b.WriteString(", ")
		}
		c.Describe(b)
	}
	b.WriteByte(')')
}

func sqlComposite(d star.Dialect, b *strings.Builder, op string, children []Predicate) {
	for i, c := range children {
		if i > 0 {
			b.WriteString(op)
		}
		b.WriteByte('(')
		c.ToSQL(d, b)
		b.WriteByte(')')
	}
}

func unionColumns(children []Predicate) []*star.Column {
	var columns []*star.Column
	seen := map[*star.Column]bool{}
	for _, c := range children {
		for _, col := range c.ConstrainedColumns() {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	return columns
}

// MinusPredicate represents the set difference left \ right when no
// closed-form simplification exists.
type MinusPredicate struct {
	left  Predicate
	right Predicate
}

var _ Predicate = (*MinusPredicate)(nil)

func NewMinus(left, right Predicate) *MinusPredicate {
	return &MinusPredicate{left: left, right: right}
}

func (p *MinusPredicate) Left() Predicate  { return p.left }
func (p *MinusPredicate) Right() Predicate { return p.right }

func (p *MinusPredicate) ConstrainedColumns() []*star.Column {
	return unionColumns([]Predicate{p.left, p.right})
}

func (p *MinusPredicate) BitKey() bitkey.Key { return bitKeyOf(p.ConstrainedColumns()) }

func (p *MinusPredicate) Evaluate(row Row) bool {
	return p.left.Evaluate(row) && !p.right.Evaluate(row)
}

func (p *MinusPredicate) Minus(other Predicate) Predicate { return NewMinus(p, other) }

func (p *MinusPredicate) Describe(b *strings.Builder) {
	b.WriteString("Minus(")
	p.left.Describe(b)
	b.WriteString(", ")
	p.right.Describe(b)
	b.WriteByte(')')
}

func (p *MinusPredicate) ToSQL(d star.Dialect, b *strings.Builder) {
	b.WriteByte('(')
	p.left.ToSQL(d, b)
	b.WriteString(") and not (")
	p.right.ToSQL(d, b)
	b.WriteByte(')')
}

func (p *MinusPredicate) Hash() uint64           { return hashDescription(p) }
func (p *MinusPredicate) Equal(o Predicate) bool { return equalDescription(p, o) }

// LiteralPredicate constrains nothing and evaluates to a constant.
type LiteralPredicate struct {
	value bool
}

var (
	literalTrue  = &LiteralPredicate{value: true}
	literalFalse = &LiteralPredicate{value: false}

	_ Predicate = (*LiteralPredicate)(nil)
)

// True returns the wildcard predicate.
func True() *LiteralPredicate { return literalTrue }

// False returns the empty predicate.
func False() *LiteralPredicate { return literalFalse }

func (p *LiteralPredicate) Value() bool                       { return p.value }
func (p *LiteralPredicate) ConstrainedColumns() []*star.Column { return nil }
func (p *LiteralPredicate) BitKey() bitkey.Key                { return bitkey.Make(0) }
func (p *LiteralPredicate) Evaluate(Row) bool                 { return p.value }

func (p *LiteralPredicate) Minus(other Predicate) Predicate {
	if !p.value {
		return p
	}
	return NewMinus(p, other)
}

func (p *LiteralPredicate) Describe(b *strings.Builder) {
	if p.value {
		b.WriteString("true")
	} else {
		b.WriteString("false")
	}
}

func (p *LiteralPredicate) ToSQL(d star.Dialect, b *strings.Builder) {
	if p.value {
		b.WriteString("1 = 1")
	} else {
		b.WriteString("1 = 0")
	}
}

func (p *LiteralPredicate) Hash() uint64           { return hashDescription(p) }
func (p *LiteralPredicate) Equal(o Predicate) bool { return equalDescription(p, o) }
