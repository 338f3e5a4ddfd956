package segment

import (
	"fmt"

	"github.com/olapio/starcache/star"
)

// Axis is one dimension of a segment's cell grid: a column and its
// sorted distinct key values.
type Axis struct {
	Column *star.Column
	Keys   []any

	ordinals map[any]int
}

// NewAxis builds an axis.  Keys are sorted with the null-safe
// comparator to match the cache's key ordering.
func NewAxis(column *star.Column, keys []any) *Axis {
	sorted := make([]any, len(keys))
	copy(sorted, keys)
	star.SortValues(sorted)
	ordinals := make(map[any]int, len(sorted))
	for i, k := range sorted {
		ordinals[k] = i
	}
	return &Axis{Column: column, Keys: sorted, ordinals: ordinals}
}

// Ordinal maps a key value to its position on the axis.
func (a *Axis) Ordinal(v any) (int, bool) {
	ord, ok := a.ordinals[v]
	return ord, ok
}

// DatasetType selects the cell value representation of a dense
// dataset.
type DatasetType int

const (
	DatasetAny DatasetType = iota
	DatasetInt64
	DatasetFloat64
)

// Dataset is a segment's backing store, addressed by the linearized
// cell offset computed from axis ordinals.
type Dataset interface {
	Get(offset int) (any, bool)
	Put(offset int, v any)
	// Count is the number of populated cells.
	Count() int
}

// NewDataset chooses a backing store.  Dense stores suit small or
// bounded axes; sparse stores suit high cardinality with few populated
// cells.  The choice is the caller's heuristic, not computed here.
func NewDataset(axes []*Axis, sparse bool, typ DatasetType, size int) Dataset {
	if sparse {
		return make(sparseDataset, size)
	}
	n := 1
	for _, a := range axes {
		n *= len(a.Keys)
	}
	switch typ {
	case DatasetInt64:
		return &denseInt64Dataset{values: make([]int64, n), present: make([]bool, n)}
	case DatasetFloat64:
		return &denseFloat64Dataset{values: make([]float64, n), present: make([]bool, n)}
	default:
		return &denseAnyDataset{values: make([]any, n), present: make([]bool, n)}
	}
}

type denseAnyDataset struct {
	values  []any
	present []bool
	count   int
}

func (d *denseAnyDataset) Get(offset int) (any, bool) {
	if offset < 0 || offset >= len(d.values) || !d.present[offset] {
		return nil, false
	}
	return d.values[offset], true
}

func (d *denseAnyDataset) Put(offset int, v any) {
	if !d.present[offset] {
		d.count++
	}
	d.values[offset] = v
	d.present[offset] = true
}

func (d *denseAnyDataset) Count() int { return d.count }

type denseInt64Dataset struct {
	values  []int64
	present []bool
	count   int
}

func (d *denseInt64Dataset) Get(offset int) (any, bool) {
	if offset < 0 || offset >= len(d.values) || !d.present[offset] {
		return nil, false
	}
	return d.values[offset], true
}

func (d *denseInt64Dataset) Put(offset int, v any) {
	n, ok := v.(int64)
	if !ok {
		panic(fmt.Sprintf("segment: int64 dataset given %T", v))
	}
	if !d.present[offset] {
		d.count++
	}
	d.values[offset] = n
	d.present[offset] = true
}

func (d *denseInt64Dataset) Count() int { return d.count }

type denseFloat64Dataset struct {
	values  []float64
	present []bool
	count   int
}

func (d *denseFloat64Dataset) Get(offset int) (any, bool) {
	if offset < 0 || offset >= len(d.values) || !d.present[offset] {
		return nil, false
	}
	return d.values[offset], true
}

func (d *denseFloat64Dataset) Put(offset int, v any) {
	n, ok := v.(float64)
	if !ok {
		panic(fmt.Sprintf("segment: float64 dataset given %T", v))
	}
	if !d.present[offset] {
		d.count++
	}
	d.values[offset] = n
	d.present[offset] = true
}

func (d *denseFloat64Dataset) Count() int { return d.count }

type sparseDataset map[int]any

func (d sparseDataset) Get(offset int) (any, bool) {
	v, ok := d[offset]
	return v, ok
}

func (d sparseDataset) Put(offset int, v any) { d[offset] = v }

func (d sparseDataset) Count() int { return len(d) }
