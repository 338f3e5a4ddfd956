package pred

import (
	"fmt"
	"strings"

	"github.com/olapio/starcache/bitkey"
	"github.com/olapio/starcache/star"
)

// TupleListPredicate is an OR of same-shape value tuples over a fixed
// column list, the multi-column analogue of ListPredicate.  Dialects
// that support multi-value IN render it as
// (c1, c2) in ((v1, v2), ...); others get an OR chain of ANDs.
type TupleListPredicate struct {
	columns []*star.Column
	rows    [][]any
}

var _ Predicate = (*TupleListPredicate)(nil)

// NewTupleList builds a tuple-list predicate.  Every row must have one
// value per column.
func NewTupleList(columns []*star.Column, rows [][]any) *TupleListPredicate {
	if len(columns) < 2 {
		panic("pred: tuple list requires at least two columns")
	}
	for _, row := range rows {
		if len(row) != len(columns) {
			panic(fmt.Sprintf("pred: tuple of %d values over %d columns", len(row), len(columns)))
		}
	}
	return &TupleListPredicate{columns: columns, rows: rows}
}

func (p *TupleListPredicate) Columns() []*star.Column            { return p.columns }
func (p *TupleListPredicate) Rows() [][]any                      { return p.rows }
func (p *TupleListPredicate) ConstrainedColumns() []*star.Column { return p.columns }
func (p *TupleListPredicate) BitKey() bitkey.Key                 { return bitKeyOf(p.columns) }

func (p *TupleListPredicate) Evaluate(row Row) bool {
outer:
	for _, tuple := range p.rows {
		for i, c := range p.columns {
			v, ok := row[c]
			if !ok || star.CompareValues(v, tuple[i]) != 0 {
				continue outer
			}
		}
		return true
	}
	return false
}

func (p *TupleListPredicate) Minus(other Predicate) Predicate { return NewMinus(p, other) }

func (p *TupleListPredicate) Describe(b *strings.Builder) {
	b.WriteString("Tuples((")
	for i, c := range p.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	b.WriteString("): ")
	for i, tuple := range p.rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range tuple {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%v", v)
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
}

func (p *TupleListPredicate) ToSQL(d star.Dialect, b *strings.Builder) {
	if !d.SupportsMultiValueIn() {
		for i, tuple := range p.rows {
			if i > 0 {
				b.WriteString(" or ")
			}
			b.WriteByte('(')
			for j, c := range p.columns {
				if j > 0 {
					b.WriteString(" and ")
				}
				NewValue(c, tuple[j]).ToSQL(d, b)
			}
			b.WriteByte(')')
		}
		return
	}
	b.WriteByte('(')
	for i, c := range p.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Expression(d))
	}
	b.WriteString(") in (")
	for i, tuple := range p.rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range tuple {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.QuoteValue(v))
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
}

func (p *TupleListPredicate) Hash() uint64           { return hashDescription(p) }
func (p *TupleListPredicate) Equal(o Predicate) bool { return equalDescription(p, o) }
