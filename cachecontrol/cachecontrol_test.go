package cachecontrol_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/olapio/starcache/cachecontrol"
	"github.com/olapio/starcache/memberset"
	"github.com/olapio/starcache/pred"
	"github.com/olapio/starcache/segment"
	"github.com/olapio/starcache/star"
	"github.com/olapio/starcache/star/startest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newControl(t *testing.T, f *startest.Fixture) *cachecontrol.CacheControl {
	t.Helper()
	cc, err := cachecontrol.New(
		cachecontrol.Config{MemberCacheSize: "1MiB", DisableEviction: true},
		[]*star.Cube{f.Cube},
		f.Reader(),
		nil,
		nil,
	)
	require.NoError(t, err)
	return cc
}

func primeMembers(f *startest.Fixture, cache memberset.MemberCache) {
	for _, m := range []*star.Member{f.USA, f.Canada, f.CA, f.OR, f.BC, f.SF, f.LA, f.Portland, f.Vancouver} {
		cache.PutMember(m)
	}
	cache.PutChildren(f.USA, []*star.Member{f.CA, f.OR})
	cache.PutLevelMembers(f.StateLevel, []*star.Member{f.CA, f.OR, f.BC})
}

// publishStateSegment loads a unit-sales segment constrained on country
// and state and registers it with the control's index.
func publishStateSegment(t *testing.T, f *startest.Fixture, cc *cachecontrol.CacheControl) *segment.Segment {
	t.Helper()
	seg := segment.New(
		f.Star,
		f.UnitSales,
		[]*star.Column{f.CountryCol, f.StateCol},
		[]pred.ColumnPredicate{
			pred.NewValueList(f.CountryCol, "USA"),
			pred.NewValueList(f.StateCol, "CA", "OR"),
		},
		nil,
	)
	require.True(t, seg.MarkLoading())
	countryAxis := segment.NewAxis(f.CountryCol, []any{"USA"})
	stateAxis := segment.NewAxis(f.StateCol, []any{"CA", "OR"})
	data := segment.NewDataset([]*segment.Axis{countryAxis, stateAxis}, false, segment.DatasetFloat64, 0)
	caOrd, _ := stateAxis.Ordinal("CA")
	orOrd, _ := stateAxis.Ordinal("OR")
	data.Put(caOrd, 100.0)
	data.Put(orOrd, 42.0)
	require.True(t, seg.SetData([]*segment.Axis{countryAxis, stateAxis}, data))
	cc.Index().Add(seg)
	return seg
}

func TestFlushPunchesExclusion(t *testing.T) {
	f := startest.New()
	cc := newControl(t, f)
	seg := publishStateSegment(t, f, cc)

	require.NoError(t, cc.Flush(cc.CreateMemberRegion(false, f.OR)))

	// The segment survives with a hole over OR; CA stays readable.
	assert.Equal(t, segment.StateLoaded, seg.State())
	require.Len(t, seg.ExcludedRegions(), 1)
	_, ok := seg.CellValue(pred.Row{f.CountryCol: "USA", f.StateCol: "OR"})
	assert.False(t, ok)
	v, ok := seg.CellValue(pred.Row{f.CountryCol: "USA", f.StateCol: "CA"})
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestFlushDisjointRegionKeepsSegment(t *testing.T) {
	f := startest.New()
	cc := newControl(t, f)
	seg := publishStateSegment(t, f, cc)

	// BC is outside the segment's state predicate: nothing happens.
	require.NoError(t, cc.Flush(cc.CreateMemberRegion(false, f.BC)))
	assert.Equal(t, segment.StateLoaded, seg.State())
	assert.Empty(t, seg.ExcludedRegions())
	v, ok := seg.CellValue(pred.Row{f.CountryCol: "USA", f.StateCol: "OR"})
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestFlushDescendantsIsConservative(t *testing.T) {
	f := startest.New()
	cc := newControl(t, f)
	seg := publishStateSegment(t, f, cc)

	// The descendants flag wildcards the city column, which the segment
	// does not constrain, so the overlap cannot be narrowed.
	require.NoError(t, cc.Flush(cc.CreateMemberRegion(true, f.CA)))
	assert.Equal(t, segment.StateFailed, seg.State())
	_, ok := seg.CellValue(pred.Row{f.CountryCol: "USA", f.StateCol: "CA"})
	assert.False(t, ok)
}

func TestFlushUnionOfMeasuresAndStates(t *testing.T) {
	f := startest.New()
	cc := newControl(t, f)
	seg := publishStateSegment(t, f, cc)

	// Crossing with the unit-sales measure targets just this segment;
	// the union normalizes into per-state entries.
	r := cc.CreateCrossjoinRegion(
		cc.CreateUnionRegion(
			cc.CreateMemberRegion(false, f.OR),
			cc.CreateMemberRegion(false, f.BC),
		),
		cc.CreateMemberRegion(false, f.UnitSales.Member),
	)
	require.NoError(t, cc.Flush(r))
	assert.Equal(t, segment.StateLoaded, seg.State())
	require.Len(t, seg.ExcludedRegions(), 1)
	_, ok := seg.CellValue(pred.Row{f.CountryCol: "USA", f.StateCol: "OR"})
	assert.False(t, ok)
}

func TestExecuteDeleteCommand(t *testing.T) {
	f := startest.New()
	cc := newControl(t, f)
	primeMembers(f, cc.MemberCache())
	cc.MemberCache().PutConstrainedChildren(f.USA, "name like C%", []*star.Member{f.CA})
	seg := publishStateSegment(t, f, cc)

	cached, ok := cc.MemberCache().ConstrainedChildren(f.USA, "name like C%")
	require.True(t, ok)
	assert.Equal(t, []*star.Member{f.CA}, cached)

	err := cc.Execute(cc.CreateDeleteCommand(cc.CreateMemberSet(false, f.CA)))
	require.NoError(t, err)

	// The member cache committed the removal, including the parent's
	// constrained-children entries.
	_, ok = cc.MemberCache().Member(memberset.KeyOf(f.CA))
	assert.False(t, ok)
	children, _ := cc.MemberCache().Children(f.USA)
	assert.NotContains(t, children, f.CA)
	_, ok = cc.MemberCache().ConstrainedChildren(f.USA, "name like C%")
	assert.False(t, ok)

	// Deleting a member invalidates cells below it, so the segment is
	// conservatively failed and compactable.
	assert.Equal(t, segment.StateFailed, seg.State())
	assert.Equal(t, 1, cc.Index().Compact())
}

func TestExecuteAddCommandKeepsDisjointSegment(t *testing.T) {
	f := startest.New()
	cc := newControl(t, f)
	primeMembers(f, cc.MemberCache())
	seg := publishStateSegment(t, f, cc)

	alberta := &star.Member{Level: f.StateLevel, Parent: f.Canada, Name: "AB", Key: "AB"}
	require.NoError(t, cc.Execute(cc.CreateAddCommand(alberta)))

	m, ok := cc.MemberCache().Member(memberset.KeyOf(alberta))
	require.True(t, ok)
	assert.Same(t, alberta, m)
	// AB is provably outside the segment's predicates.
	assert.Equal(t, segment.StateLoaded, seg.State())
}

func TestPrintCacheState(t *testing.T) {
	f := startest.New()
	cc := newControl(t, f)
	publishStateSegment(t, f, cc)

	var b strings.Builder
	cc.PrintCacheState(&b)
	out := b.String()
	assert.Contains(t, out, "cube Sales")
	assert.Contains(t, out, "Segment")
	assert.Contains(t, out, "Unit Sales")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"member_cache_size: 8MiB\ndisable_eviction: true\n"), 0o644))
	c, err := cachecontrol.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "8MiB", c.MemberCacheSize)
	assert.True(t, c.DisableEviction)

	require.NoError(t, os.WriteFile(path, []byte(
		"member_cache_size: lots\n"), 0o644))
	_, err = cachecontrol.LoadConfig(path)
	assert.ErrorContains(t, err, "member_cache_size")
}
