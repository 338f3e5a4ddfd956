package memberset_test

import (
	"testing"

	"github.com/olapio/starcache/memberset"
	"github.com/olapio/starcache/star"
	"github.com/olapio/starcache/star/startest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleSetFilter(t *testing.T) {
	f := startest.New()
	reader := f.Reader()
	set := memberset.NewSimpleSet(false, f.CA, f.OR, f.SF)

	atState, err := set.Filter(f.StateLevel, reader)
	require.NoError(t, err)
	members, err := atState.Members(reader)
	require.NoError(t, err)
	assert.Equal(t, []*star.Member{f.CA, f.OR}, members)

	atCountry, err := set.Filter(f.CountryLevel, reader)
	require.NoError(t, err)
	assert.IsType(t, memberset.Empty(), atCountry)
}

func TestSimpleSetDescendants(t *testing.T) {
	f := startest.New()
	reader := f.Reader()
	set := memberset.NewSimpleSet(true, f.CA)
	members, err := set.Members(reader)
	require.NoError(t, err)
	assert.Equal(t, []*star.Member{f.CA, f.SF, f.LA}, members)
}

func TestSimpleSetMixedHierarchyPanics(t *testing.T) {
	f := startest.New()
	assert.Panics(t, func() {
		memberset.NewSimpleSet(false, f.CA, f.Q1)
	})
}

func TestRangeSetMembers(t *testing.T) {
	f := startest.New()
	reader := f.Reader()

	// Level order is CA, OR, BC per the fixture reader.
	set := memberset.NewRangeSet(f.StateLevel, f.CA, true, f.BC, false, false)
	members, err := set.Members(reader)
	require.NoError(t, err)
	assert.Equal(t, []*star.Member{f.CA, f.OR}, members)

	unbounded := memberset.NewRangeSet(f.StateLevel, nil, false, nil, false, false)
	members, err = unbounded.Members(reader)
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestRangeSetFilterWalksDown(t *testing.T) {
	f := startest.New()
	reader := f.Reader()

	set := memberset.NewRangeSet(f.StateLevel, f.CA, true, f.OR, true, true)
	atCity, err := set.Filter(f.CityLevel, reader)
	require.NoError(t, err)
	cityRange, ok := atCity.(*memberset.RangeSet)
	require.True(t, ok)
	// Lower walks to its first child, upper to its last.
	assert.Same(t, f.SF, cityRange.Lower)
	assert.Same(t, f.Portland, cityRange.Upper)

	// Without descendants a deeper level yields nothing.
	flat := memberset.NewRangeSet(f.StateLevel, f.CA, true, f.OR, true, false)
	atCity, err = flat.Filter(f.CityLevel, reader)
	require.NoError(t, err)
	assert.IsType(t, memberset.Empty(), atCity)

	// A shallower level yields nothing.
	atCountry, err := set.Filter(f.CountryLevel, reader)
	require.NoError(t, err)
	assert.IsType(t, memberset.Empty(), atCountry)
}

func TestRangeSetFilterDeadEndIsEmpty(t *testing.T) {
	f := startest.New()
	reader := f.Reader()
	childless := &star.Member{Level: f.StateLevel, Parent: f.Canada, Name: "YT", Key: "YT"}
	set := memberset.NewRangeSet(f.StateLevel, childless, true, childless, true, true)
	atCity, err := set.Filter(f.CityLevel, reader)
	require.NoError(t, err)
	assert.IsType(t, memberset.Empty(), atCity)
}

func TestUnionSetFilter(t *testing.T) {
	f := startest.New()
	reader := f.Reader()
	set := memberset.NewUnionSet(
		memberset.NewSimpleSet(false, f.CA),
		memberset.NewSimpleSet(false, f.SF),
	)
	atState, err := set.Filter(f.StateLevel, reader)
	require.NoError(t, err)
	members, err := atState.Members(reader)
	require.NoError(t, err)
	assert.Equal(t, []*star.Member{f.CA}, members)
}

func TestRangeSetCrossLevelPanics(t *testing.T) {
	f := startest.New()
	assert.Panics(t, func() {
		memberset.NewRangeSet(f.StateLevel, f.CA, true, f.Q1, true, false)
	})
}
