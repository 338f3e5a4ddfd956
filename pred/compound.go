package pred

import (
	"errors"
	"sync"

	"github.com/olapio/starcache/bitkey"
	"github.com/olapio/starcache/star"
)

// ErrUnsupportedCalcMember signals a calculated member whose
// expression shape cannot be expanded into tuples.  The evaluator must
// fall back to cell-by-cell evaluation.
var ErrUnsupportedCalcMember = errors.New("unsupported calculated member in compound predicate")

// CalcExpander expands a calculated member into the member tuples it
// denotes.  Only single-arity member expressions and set-typed
// expressions are expandable; anything else returns
// ErrUnsupportedCalcMember.
type CalcExpander interface {
	Expand(m *star.Member) ([][]*star.Member, error)
}

// CompoundInfo is the outcome of compiling a list of member tuples
// (typically a query slicer) into one compound predicate: the bit-key
// of all constrained columns, the predicate tree, and its SQL
// rendering.  Satisfiable is false when every tuple failed to map to
// base columns, in which case the other fields are zero.
type CompoundInfo struct {
	BitKey      bitkey.Key
	Predicate   Predicate
	SQL         string
	Satisfiable bool
}

// BuildCompound compiles tuples into a CompoundInfo.  Tuples are
// bucketed by the bit-key of the columns they actually constrain so
// that same-shape tuples share one compact OR (or IN list); buckets
// are then OR-ed together.  Tuples that cannot be constrained (a
// non-all level without a base column) are dropped; if all tuples are
// dropped the result is unsatisfiable.  A tuple of all members admits
// every cell, so it short-circuits the whole compound to the trivially
// true predicate; anything narrower would under-cover the slicer.
// Calculated members are expanded through expander first; a nil
// expander rejects any calculated member.
func BuildCompound(tuples [][]*star.Member, d star.Dialect, expander CalcExpander) (*CompoundInfo, error) {
	expanded, err := expandCalculated(tuples, expander)
	if err != nil {
		return nil, err
	}
	type bucket struct {
		key   bitkey.Key
		preds []Predicate
	}
	var order []string
	buckets := map[string]*bucket{}
	for _, tuple := range expanded {
		key, p, ok := tuplePredicate(tuple)
		if !ok {
			continue
		}
		if p == True() {
			return &CompoundInfo{
				BitKey:      bitkey.Make(0),
				Predicate:   True(),
				SQL:         SQLString(True(), d),
				Satisfiable: true,
			}, nil
		}
		id := key.String()
		b, found := buckets[id]
		if !found {
			b = &bucket{key: key}
			buckets[id] = b
			order = append(order, id)
		}
		b.preds = append(b.preds, p)
	}
	if len(order) == 0 {
		return &CompoundInfo{Satisfiable: false}, nil
	}
	var bucketPreds []Predicate
	bitKey := buckets[order[0]].key
	for _, id := range order {
		b := buckets[id]
		bitKey = bitKey.Union(b.key)
		bucketPreds = append(bucketPreds, combineBucket(b.preds))
	}
	p := bucketPreds[0]
	if len(bucketPreds) > 1 {
		p = NewOr(bucketPreds...)
	}
	return &CompoundInfo{
		BitKey:      bitKey,
		Predicate:   p,
		SQL:         SQLString(p, d),
		Satisfiable: true,
	}, nil
}

// tuplePredicate turns one tuple into the AND of per-member value
// predicates, walking each member to its root and stopping early at a
// unique level since a unique child key makes ancestor constraints
// redundant.  ok is false when some non-all level lacks a base column.
// A tuple consisting solely of all members returns the trivially true
// predicate with an empty key.
func tuplePredicate(tuple []*star.Member) (bitkey.Key, Predicate, bool) {
	var key bitkey.Key
	var conj []Predicate
	first := true
	for _, member := range tuple {
		for m := member; m != nil && !m.IsAll(); m = m.Parent {
			col := m.Level.Column
			if col == nil {
				return bitkey.Key{}, nil, false
			}
			if first {
				key = col.Star.MakeBitKey()
				first = false
			}
			key = key.Set(col.Bit)
			conj = append(conj, NewValue(col, m.Key))
			if m.Level.Unique {
				break
			}
		}
	}
	if len(conj) == 0 {
		// An all-member tuple constrains nothing and admits everything.
		return bitkey.Key{}, True(), true
	}
	if len(conj) == 1 {
		return key, conj[0], true
	}
	return key, NewAnd(conj...), true
}

// combineBucket ORs the tuple predicates of one bucket, collapsing to
// a single IN-style list when every predicate is a plain value test on
// the same column, or to a tuple list when every predicate is an AND
// of value tests over the same column sequence.
func combineBucket(preds []Predicate) Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	var col *star.Column
	values := make([]any, 0, len(preds))
	simple := true
	for _, p := range preds {
		v, ok := p.(*ValuePredicate)
		if !ok || (col != nil && v.Column() != col) {
			simple = false
			break
		}
		col = v.Column()
		values = append(values, v.Value())
	}
	if simple {
		return NewValueList(col, values...)
	}
	if columns, rows, ok := tupleRows(preds); ok {
		return NewTupleList(columns, rows)
	}
	return NewOr(preds...)
}

// tupleRows extracts the (columns, rows) shape of a bucket whose every
// predicate is an AND of value tests over one shared column sequence.
func tupleRows(preds []Predicate) ([]*star.Column, [][]any, bool) {
	var columns []*star.Column
	rows := make([][]any, 0, len(preds))
	for _, p := range preds {
		and, ok := p.(*AndPredicate)
		if !ok {
			return nil, nil, false
		}
		children := and.Children()
		if columns == nil {
			if len(children) < 2 {
				return nil, nil, false
			}
			columns = make([]*star.Column, len(children))
			for i, c := range children {
				v, ok := c.(*ValuePredicate)
				if !ok {
					return nil, nil, false
				}
				columns[i] = v.Column()
			}
		}
		if len(children) != len(columns) {
			return nil, nil, false
		}
		row := make([]any, len(children))
		for i, c := range children {
			v, ok := c.(*ValuePredicate)
			if !ok || v.Column() != columns[i] {
				return nil, nil, false
			}
			row[i] = v.Value()
		}
		rows = append(rows, row)
	}
	return columns, rows, true
}

func expandCalculated(tuples [][]*star.Member, expander CalcExpander) ([][]*star.Member, error) {
	var out [][]*star.Member
	for _, tuple := range tuples {
		calcAt := -1
		for i, m := range tuple {
			if m.Calculated {
				calcAt = i
				break
			}
		}
		if calcAt < 0 {
			out = append(out, tuple)
			continue
		}
		if expander == nil {
			return nil, ErrUnsupportedCalcMember
		}
		expansions, err := expander.Expand(tuple[calcAt])
		if err != nil {
			return nil, err
		}
		for _, expansion := range expansions {
			replaced := make([]*star.Member, 0, len(tuple)-1+len(expansion))
			replaced = append(replaced, tuple[:calcAt]...)
			replaced = append(replaced, expansion...)
			replaced = append(replaced, tuple[calcAt+1:]...)
			out = append(out, replaced)
		}
	}
	// Expansion can itself surface calculated members; recurse until
	// the tuple list is flat.
	for _, tuple := range out {
		for _, m := range tuple {
			if m.Calculated {
				return expandCalculated(out, expander)
			}
		}
	}
	return out, nil
}

// CompoundCache memoizes the slicer's CompoundInfo across the cell
// requests of one query.  The memo is valid only while the measure's
// cube is unchanged.
type CompoundCache struct {
	mu   sync.Mutex
	cube *star.Cube
	info *CompoundInfo
}

func (c *CompoundCache) Get(tuples [][]*star.Member, measure *star.Measure, d star.Dialect, expander CalcExpander) (*CompoundInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info != nil && c.cube == measure.Cube {
		return c.info, nil
	}
	info, err := BuildCompound(tuples, d, expander)
	if err != nil {
		return nil, err
	}
	c.cube = measure.Cube
	c.info = info
	return info, nil
}
