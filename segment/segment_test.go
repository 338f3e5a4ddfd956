package segment_test

import (
	"errors"
	"testing"

	"github.com/olapio/starcache/pred"
	"github.com/olapio/starcache/segment"
	"github.com/olapio/starcache/star"
	"github.com/olapio/starcache/star/startest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateSegment(f *startest.Fixture, states ...string) *segment.Segment {
	values := make([]any, len(states))
	for i, s := range states {
		values[i] = s
	}
	return segment.New(
		f.Star,
		f.UnitSales,
		[]*star.Column{f.StateCol},
		[]pred.ColumnPredicate{pred.NewValueList(f.StateCol, values...)},
		nil,
	)
}

func loadStateSegment(t *testing.T, f *startest.Fixture, cells map[string]float64) *segment.Segment {
	t.Helper()
	states := make([]string, 0, len(cells))
	for s := range cells {
		states = append(states, s)
	}
	seg := stateSegment(f, states...)
	require.True(t, seg.MarkLoading())
	keys := make([]any, len(states))
	for i, s := range states {
		keys[i] = s
	}
	axis := segment.NewAxis(f.StateCol, keys)
	data := segment.NewDataset([]*segment.Axis{axis}, false, segment.DatasetFloat64, 0)
	for s, v := range cells {
		ord, ok := axis.Ordinal(s)
		require.True(t, ok)
		data.Put(ord, v)
	}
	require.True(t, seg.SetData([]*segment.Axis{axis}, data))
	return seg
}

func TestMatchSoundness(t *testing.T) {
	f := startest.New()
	seg := stateSegment(f, "CA", "OR")

	stateKey := segment.NewAggregationKey(f.Star, f.Star.MakeBitKey().Set(f.StateCol.Bit), nil)
	cityKey := segment.NewAggregationKey(f.Star, f.Star.MakeBitKey().Set(f.CityCol.Bit), nil)

	assert.True(t, seg.Matches(stateKey, f.UnitSales))
	// A segment must never match a key with a different bit-key.
	assert.False(t, seg.Matches(cityKey, f.UnitSales))
	// Measures compare by identity.
	assert.False(t, seg.Matches(stateKey, f.StoreSales))
	// A different star never matches even with an equal bit-key.
	other := startest.New()
	otherKey := segment.NewAggregationKey(other.Star, other.Star.MakeBitKey().Set(other.StateCol.Bit), nil)
	assert.False(t, seg.Matches(otherKey, f.UnitSales))
}

func TestCompoundListComparison(t *testing.T) {
	f := startest.New()
	bitKey := f.Star.MakeBitKey().Set(f.StateCol.Bit)
	ca := pred.NewValue(f.StateCol, "CA")
	or := pred.NewValue(f.StateCol, "OR")

	seg := segment.New(f.Star, f.UnitSales,
		[]*star.Column{f.StateCol},
		[]pred.ColumnPredicate{pred.NewValueList(f.StateCol, "CA")},
		[]pred.Predicate{ca, or})

	// Order-independent.
	assert.True(t, seg.Matches(
		segment.NewAggregationKey(f.Star, bitKey, []pred.Predicate{or, ca}), f.UnitSales))
	// Duplicate-sensitive.
	assert.False(t, seg.Matches(
		segment.NewAggregationKey(f.Star, bitKey, []pred.Predicate{ca, ca}), f.UnitSales))
	assert.False(t, seg.Matches(
		segment.NewAggregationKey(f.Star, bitKey, []pred.Predicate{ca}), f.UnitSales))
}

func TestStateMachine(t *testing.T) {
	f := startest.New()
	seg := stateSegment(f, "CA")
	assert.Equal(t, segment.StateUnloaded, seg.State())
	require.True(t, seg.MarkLoading())
	// Only one loader wins the transition.
	assert.False(t, seg.MarkLoading())

	// Invalidation during load: SetData must not resurrect the
	// segment.
	seg.Fail(errors.New("concurrent flush"))
	assert.False(t, seg.SetData(nil, nil))
	assert.Equal(t, segment.StateFailed, seg.State())
	_, ok := seg.CellValue(pred.Row{f.StateCol: "CA"})
	assert.False(t, ok)
}

func TestCellValueAndExclusion(t *testing.T) {
	f := startest.New()
	seg := loadStateSegment(t, f, map[string]float64{"CA": 100, "OR": 42})

	v, ok := seg.CellValue(pred.Row{f.StateCol: "CA"})
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	// Punch a hole over OR: the cell reads as not present.
	seg.Exclude(&segment.PredicateRegion{Predicate: pred.NewValue(f.StateCol, "OR")})
	_, ok = seg.CellValue(pred.Row{f.StateCol: "OR"})
	assert.False(t, ok)
	v, ok = seg.CellValue(pred.Row{f.StateCol: "CA"})
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	// Equal exclusions coalesce.
	seg.Exclude(&segment.PredicateRegion{Predicate: pred.NewValue(f.StateCol, "OR")})
	assert.Len(t, seg.ExcludedRegions(), 1)

	// Keys outside the axes are not present, not an error.
	_, ok = seg.CellValue(pred.Row{f.StateCol: "BC"})
	assert.False(t, ok)
}

func TestDatasets(t *testing.T) {
	f := startest.New()
	axis := segment.NewAxis(f.StateCol, []any{"CA", "OR", "BC"})
	assert.Equal(t, []any{"BC", "CA", "OR"}, axis.Keys)

	dense := segment.NewDataset([]*segment.Axis{axis}, false, segment.DatasetInt64, 0)
	dense.Put(0, int64(7))
	v, ok := dense.Get(0)
	require.True(t, ok)
	assert.Equal(t, int64(7), v)
	_, ok = dense.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, dense.Count())

	sparse := segment.NewDataset(nil, true, segment.DatasetAny, 4)
	sparse.Put(12345, "x")
	v, ok = sparse.Get(12345)
	require.True(t, ok)
	assert.Equal(t, "x", v)
	assert.Equal(t, 1, sparse.Count())
}

func TestIndexLookupAndLoad(t *testing.T) {
	f := startest.New()
	index := segment.NewIndex(nil)
	key := segment.NewAggregationKey(f.Star, f.Star.MakeBitKey().Set(f.StateCol.Bit), nil)

	assert.Nil(t, index.Lookup(key, f.UnitSales))

	fetched := 0
	fetch := func() (*segment.Segment, error) {
		fetched++
		return loadStateSegment(t, f, map[string]float64{"CA": 100}), nil
	}
	s1, err := index.Load(key, f.UnitSales, fetch)
	require.NoError(t, err)
	s2, err := index.Load(key, f.UnitSales, fetch)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, fetched)

	// A failed segment is never a hit; Compact drops it.
	s1.Fail(errors.New("flushed"))
	assert.Nil(t, index.Lookup(key, f.UnitSales))
	assert.Equal(t, 1, index.Compact())
	assert.Empty(t, index.All())
}

func TestGroupingSet(t *testing.T) {
	f := startest.New()
	seg := stateSegment(f, "CA")
	levelKey := f.Star.MakeBitKey().Set(f.StateCol.Bit)
	measureKey := f.Star.MakeBitKey().Set(f.UnitSales.Column.Bit)

	g := segment.NewGroupingSet([]*segment.Segment{seg}, levelKey, measureKey, seg.Predicates)
	assert.Same(t, seg, g.Segment0())
	assert.Equal(t, `("store"."store_state")`, g.SQLGroupingSet(star.AnsiDialect{}))

	g.Fail(errors.New("load aborted"))
	assert.Equal(t, segment.StateFailed, seg.State())

	assert.Panics(t, func() {
		segment.NewGroupingSet(nil, levelKey, measureKey, nil)
	})
}
