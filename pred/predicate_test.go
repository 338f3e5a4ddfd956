package pred_test

import (
	"testing"

	"github.com/olapio/starcache/pred"
	"github.com/olapio/starcache/star"
	"github.com/olapio/starcache/star/startest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeEvaluateBounds(t *testing.T) {
	f := startest.New()
	r := pred.NewRange(f.YearCol, 5, true, 10, false)
	cases := []struct {
		value    any
		expected bool
	}{
		{4, false},
		{5, true},
		{7, true},
		{10, false},
		{nil, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, r.EvaluateValue(c.value), "value %v", c.value)
	}
	unboundedBelow := pred.NewRange(f.YearCol, nil, false, 10, true)
	assert.True(t, unboundedBelow.EvaluateValue(-100))
	assert.True(t, unboundedBelow.EvaluateValue(10))
	assert.False(t, unboundedBelow.EvaluateValue(11))
}

func TestRangeInclusiveNilBoundPanics(t *testing.T) {
	f := startest.New()
	assert.Panics(t, func() {
		pred.NewRange(f.YearCol, nil, true, 10, false)
	})
}

func TestAndEvaluateAllChildren(t *testing.T) {
	f := startest.New()
	state := pred.NewValue(f.StateCol, "CA")
	city := pred.NewValue(f.CityCol, "San Francisco")
	and := pred.NewAnd(state, city)
	or := pred.NewOr(state, city)

	sf := pred.Row{f.StateCol: "CA", f.CityCol: "San Francisco"}
	la := pred.Row{f.StateCol: "CA", f.CityCol: "Los Angeles"}
	portland := pred.Row{f.StateCol: "OR", f.CityCol: "Portland"}

	assert.True(t, and.Evaluate(sf))
	assert.False(t, and.Evaluate(la))
	// Both children false must be false: AND, not OR of children.
	assert.False(t, and.Evaluate(portland))
	assert.True(t, or.Evaluate(la))
	assert.False(t, or.Evaluate(portland))
}

func TestMinusEvaluate(t *testing.T) {
	f := startest.New()
	state := pred.NewRange(f.StateCol, "AA", true, "ZZ", true)
	minus := state.Minus(pred.NewValue(f.StateCol, "OR"))
	assert.True(t, minus.Evaluate(pred.Row{f.StateCol: "CA"}))
	assert.False(t, minus.Evaluate(pred.Row{f.StateCol: "OR"}))
}

func TestValueMinusClosedForms(t *testing.T) {
	f := startest.New()
	ca := pred.NewValue(f.StateCol, "CA")
	assert.Same(t, pred.False(), ca.Minus(pred.NewValue(f.StateCol, "CA")))
	assert.Equal(t, ca, ca.Minus(pred.NewValue(f.StateCol, "OR")))

	list := pred.NewValueList(f.StateCol, "CA", "OR", "BC")
	smaller := list.Minus(pred.NewValue(f.StateCol, "OR"))
	assert.True(t, smaller.Evaluate(pred.Row{f.StateCol: "CA"}))
	assert.False(t, smaller.Evaluate(pred.Row{f.StateCol: "OR"}))
}

func TestOverlapClassification(t *testing.T) {
	f := startest.New()
	r510 := pred.NewRange(f.YearCol, 5, true, 10, false)

	o, err := r510.Overlap(pred.NewValue(f.YearCol, 7))
	require.NoError(t, err)
	assert.Equal(t, pred.OverlapSuperset, o)

	o, err = r510.Overlap(pred.NewValue(f.YearCol, 12))
	require.NoError(t, err)
	assert.Equal(t, pred.OverlapDisjoint, o)

	o, err = pred.NewValue(f.YearCol, 7).Overlap(r510)
	require.NoError(t, err)
	assert.Equal(t, pred.OverlapSubset, o)

	o, err = r510.Overlap(pred.NewRange(f.YearCol, 6, true, 8, true))
	require.NoError(t, err)
	assert.Equal(t, pred.OverlapSuperset, o)

	o, err = r510.Overlap(pred.NewRange(f.YearCol, 8, true, 20, true))
	require.NoError(t, err)
	assert.Equal(t, pred.OverlapPartial, o)

	o, err = r510.Overlap(pred.NewRange(f.YearCol, 10, true, 20, true))
	require.NoError(t, err)
	assert.Equal(t, pred.OverlapDisjoint, o)

	o, err = r510.Overlap(pred.NewRange(f.YearCol, 5, true, 10, false))
	require.NoError(t, err)
	assert.Equal(t, pred.OverlapEqual, o)

	list := pred.NewValueList(f.YearCol, 5, 6)
	o, err = list.Overlap(pred.NewValueList(f.YearCol, 5, 6, 7))
	require.NoError(t, err)
	assert.Equal(t, pred.OverlapSubset, o)

	// Lists cannot intersect ranges: the range has no value set.
	_, err = list.Overlap(r510)
	assert.ErrorIs(t, err, pred.ErrIntersectUnsupported)

	// Different columns are a contract violation, not an answer.
	_, err = r510.Overlap(pred.NewValue(f.StateCol, "CA"))
	assert.ErrorIs(t, err, pred.ErrIntersectUnsupported)
}

func TestRangeValuesUnsupported(t *testing.T) {
	f := startest.New()
	_, err := pred.NewRange(f.YearCol, 5, true, 10, false).Values()
	assert.ErrorIs(t, err, pred.ErrValuesUnsupported)
}

func TestCloneWithColumn(t *testing.T) {
	f := startest.New()
	aggState := f.Star.AddColumn("agg_sales", "store_state")
	ca := pred.NewValue(f.StateCol, "CA")
	clone := ca.CloneWithColumn(aggState)
	assert.Same(t, aggState, clone.Column())
	assert.True(t, clone.EvaluateValue("CA"))
	assert.True(t, clone.BitKey().Get(aggState.Bit))
	assert.False(t, clone.BitKey().Get(f.StateCol.Bit))
}

func TestDescribeAndSQL(t *testing.T) {
	f := startest.New()
	d := star.AnsiDialect{}

	r := pred.NewRange(f.YearCol, 5, true, 10, false)
	assert.Equal(t, "Range(time_by_day.the_year: 5 inclusive to 10 exclusive)", pred.DescribeString(r))
	assert.Equal(t, `"time_by_day"."the_year" >= 5 and "time_by_day"."the_year" < 10`, pred.SQLString(r, d))

	v := pred.NewValue(f.StateCol, "CA")
	assert.Equal(t, `"store"."store_state" = 'CA'`, pred.SQLString(v, d))
	assert.Equal(t, `"store"."store_state" is null`, pred.SQLString(pred.NewValue(f.StateCol, nil), d))

	list := pred.NewValueList(f.StateCol, "CA", "OR")
	assert.Equal(t, `"store"."store_state" in ('CA', 'OR')`, pred.SQLString(list, d))

	and := pred.NewAnd(v, pred.NewValue(f.CityCol, "San Francisco"))
	assert.Equal(t,
		`("store"."store_state" = 'CA') and ("store"."store_city" = 'San Francisco')`,
		pred.SQLString(and, d))
}

func TestHashEqualStructural(t *testing.T) {
	f := startest.New()
	a := pred.NewValue(f.StateCol, "CA")
	b := pred.NewValue(f.StateCol, "CA")
	c := pred.NewValue(f.StateCol, "OR")
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(pred.NewValue(f.CityCol, "CA")))
}
