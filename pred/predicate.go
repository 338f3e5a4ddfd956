// Package pred implements the column-predicate algebra used both to
// decide whether a cached segment satisfies a cell request and to
// render SQL WHERE fragments.  Leaf predicates constrain exactly one
// star column; composites constrain whatever their children constrain.
package pred

import (
	"errors"
	"hash/fnv"
	"strings"

	"github.com/olapio/starcache/bitkey"
	"github.com/olapio/starcache/star"
)

// ErrIntersectUnsupported signals an Overlap combination the algebra
// does not implement.  Callers must treat it as "cannot decide", never
// approximate the answer.
var ErrIntersectUnsupported = errors.New("predicate intersection not supported for these operands")

// ErrValuesUnsupported signals a predicate that cannot enumerate its
// value set (ranges).
var ErrValuesUnsupported = errors.New("predicate cannot enumerate values")

// Row maps star columns to the cell-key values being tested.  A column
// absent from the row fails any predicate constraining it.
type Row map[*star.Column]any

// Predicate constrains some set of star columns.
type Predicate interface {
	// ConstrainedColumns returns the columns this predicate
	// constrains, in a stable order.
	ConstrainedColumns() []*star.Column
	// BitKey returns the constrained-columns fingerprint, sized for
	// the predicate's star.
	BitKey() bitkey.Key
	// Evaluate tests a cell-key tuple.
	Evaluate(row Row) bool
	// Equal is structural equality, suitable for cache keys.
	Equal(other Predicate) bool
	// Hash is consistent with Equal.
	Hash() uint64
	// Describe renders a stable debug string.
	Describe(b *strings.Builder)
	// ToSQL renders a WHERE fragment.
	ToSQL(d star.Dialect, b *strings.Builder)
	// Minus returns a predicate for the set difference this \ other.
	// When no closed form exists the result wraps both operands.
	Minus(other Predicate) Predicate
}

// ColumnPredicate is a predicate constraining exactly one column.
type ColumnPredicate interface {
	Predicate
	Column() *star.Column
	// EvaluateValue tests one value of the constrained column.
	EvaluateValue(v any) bool
	// Overlap classifies this predicate's value set against other's.
	// Both predicates must constrain the same column.
	Overlap(other ColumnPredicate) (Overlap, error)
	// CloneWithColumn rebinds the predicate to another column,
	// typically an aggregate-table alias of the same logical column.
	CloneWithColumn(c *star.Column) ColumnPredicate
	// Values enumerates the predicate's explicit value set, or
	// ErrValuesUnsupported.
	Values() ([]any, error)
}

// Overlap classifies how one predicate's value set relates to
// another's.
type Overlap int

const (
	// OverlapDisjoint: the sets share no value.
	OverlapDisjoint Overlap = iota
	// OverlapEqual: the sets are identical.
	OverlapEqual
	// OverlapSubset: the receiver's set is strictly contained in the
	// operand's.
	OverlapSubset
	// OverlapSuperset: the receiver's set strictly contains the
	// operand's.
	OverlapSuperset
	// OverlapPartial: the sets intersect but neither contains the
	// other, or containment could not be proven.
	OverlapPartial
)

func (o Overlap) String() string {
	switch o {
	case OverlapDisjoint:
		return "disjoint"
	case OverlapEqual:
		return "equal"
	case OverlapSubset:
		return "subset"
	case OverlapSuperset:
		return "superset"
	case OverlapPartial:
		return "partial"
	}
	return "unknown"
}

// DescribeString renders p's Describe output as a string.
func DescribeString(p Predicate) string {
	var b strings.Builder
	p.Describe(&b)
	return b.String()
}

// SQLString renders p's ToSQL output as a string.
func SQLString(p Predicate, d star.Dialect) string {
	var b strings.Builder
	p.ToSQL(d, &b)
	return b.String()
}

// hashDescription is the default hash: FNV-1a over the describe
// string, which is stable and structural per the Describe contract.
func hashDescription(p Predicate) uint64 {
	h := fnv.New64a()
	h.Write([]byte(DescribeString(p)))
	return h.Sum64()
}

// equalDescription is the default structural equality: identical
// constrained columns and identical describe strings.
func equalDescription(p, other Predicate) bool {
	pc, oc := p.ConstrainedColumns(), other.ConstrainedColumns()
	if len(pc) != len(oc) {
		return false
	}
	for i := range pc {
		if pc[i] != oc[i] {
			return false
		}
	}
	return DescribeString(p) == DescribeString(other)
}

func bitKeyOf(columns []*star.Column) bitkey.Key {
	if len(columns) == 0 {
		return bitkey.Make(0)
	}
	k := columns[0].Star.MakeBitKey()
	for _, c := range columns {
		k = k.Set(c.Bit)
	}
	return k
}
