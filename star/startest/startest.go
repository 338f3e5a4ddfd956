// Package startest provides a small Sales cube fixture shared by
// tests: a Store hierarchy (Country, State, City), a Time hierarchy
// (Year, Quarter), and Unit Sales / Store Sales measures over one
// star.
package startest

import "github.com/olapio/starcache/star"

type Fixture struct {
	Star *star.Star
	Cube *star.Cube

	StoreDim   *star.Dimension
	TimeDim    *star.Dimension
	MeasureDim *star.Dimension

	CountryLevel *star.Level
	StateLevel   *star.Level
	CityLevel    *star.Level
	YearLevel    *star.Level
	QuarterLevel *star.Level

	CountryCol *star.Column
	StateCol   *star.Column
	CityCol    *star.Column
	YearCol    *star.Column
	QuarterCol *star.Column

	UnitSales  *star.Measure
	StoreSales *star.Measure

	AllStores *star.Member
	USA       *star.Member
	Canada    *star.Member
	CA        *star.Member
	OR        *star.Member
	BC        *star.Member
	SF        *star.Member
	LA        *star.Member
	Portland  *star.Member
	Vancouver *star.Member

	AllTime *star.Member
	Y1997   *star.Member
	Q1      *star.Member
	Q2      *star.Member
}

// New builds the fixture.  Every call returns an independent schema so
// tests can mutate member caches freely.
func New() *Fixture {
	f := &Fixture{}
	f.Star = star.NewStar("sales_fact")

	f.CountryCol = f.Star.AddColumn("store", "store_country")
	f.StateCol = f.Star.AddColumn("store", "store_state")
	f.CityCol = f.Star.AddColumn("store", "store_city")
	f.YearCol = f.Star.AddColumn("time_by_day", "the_year")
	f.QuarterCol = f.Star.AddColumn("time_by_day", "quarter")
	unitCol := f.Star.AddColumn("sales_fact", "unit_sales")
	storeCol := f.Star.AddColumn("sales_fact", "store_sales")

	f.StoreDim = &star.Dimension{Name: "Store"}
	storeHier := &star.Hierarchy{Name: "Store", Dimension: f.StoreDim}
	f.StoreDim.Hierarchy = storeHier
	allStoreLevel := &star.Level{Hierarchy: storeHier, Name: "(All)", Depth: 0, All: true}
	f.CountryLevel = &star.Level{Hierarchy: storeHier, Name: "Store Country", Depth: 1, Column: f.CountryCol}
	f.StateLevel = &star.Level{Hierarchy: storeHier, Name: "Store State", Depth: 2, Column: f.StateCol}
	f.CityLevel = &star.Level{Hierarchy: storeHier, Name: "Store City", Depth: 3, Column: f.CityCol}
	storeHier.Levels = []*star.Level{allStoreLevel, f.CountryLevel, f.StateLevel, f.CityLevel}

	f.AllStores = &star.Member{Level: allStoreLevel, Name: "All Stores"}
	storeHier.AllMember = f.AllStores
	f.USA = member(f.CountryLevel, f.AllStores, "USA")
	f.Canada = member(f.CountryLevel, f.AllStores, "Canada")
	f.CA = member(f.StateLevel, f.USA, "CA")
	f.OR = member(f.StateLevel, f.USA, "OR")
	f.BC = member(f.StateLevel, f.Canada, "BC")
	f.SF = member(f.CityLevel, f.CA, "San Francisco")
	f.LA = member(f.CityLevel, f.CA, "Los Angeles")
	f.Portland = member(f.CityLevel, f.OR, "Portland")
	f.Vancouver = member(f.CityLevel, f.BC, "Vancouver")

	f.TimeDim = &star.Dimension{Name: "Time"}
	timeHier := &star.Hierarchy{Name: "Time", Dimension: f.TimeDim}
	f.TimeDim.Hierarchy = timeHier
	allTimeLevel := &star.Level{Hierarchy: timeHier, Name: "(All)", Depth: 0, All: true}
	f.YearLevel = &star.Level{Hierarchy: timeHier, Name: "Year", Depth: 1, Column: f.YearCol}
	f.QuarterLevel = &star.Level{Hierarchy: timeHier, Name: "Quarter", Depth: 2, Column: f.QuarterCol}
	timeHier.Levels = []*star.Level{allTimeLevel, f.YearLevel, f.QuarterLevel}

	f.AllTime = &star.Member{Level: allTimeLevel, Name: "All Time"}
	timeHier.AllMember = f.AllTime
	f.Y1997 = member(f.YearLevel, f.AllTime, "1997")
	f.Y1997.Key = 1997
	f.Q1 = member(f.QuarterLevel, f.Y1997, "Q1")
	f.Q2 = member(f.QuarterLevel, f.Y1997, "Q2")

	f.MeasureDim = &star.Dimension{Name: "Measures", Measures: true}
	measureHier := &star.Hierarchy{Name: "Measures", Dimension: f.MeasureDim}
	f.MeasureDim.Hierarchy = measureHier
	measureLevel := &star.Level{Hierarchy: measureHier, Name: "MeasuresLevel"}
	measureHier.Levels = []*star.Level{measureLevel}

	f.Cube = &star.Cube{
		Name:       "Sales",
		Star:       f.Star,
		Dimensions: []*star.Dimension{f.MeasureDim, f.StoreDim, f.TimeDim},
	}
	f.UnitSales = measure(f.Cube, measureLevel, unitCol, "Unit Sales", "sum")
	f.StoreSales = measure(f.Cube, measureLevel, storeCol, "Store Sales", "sum")
	return f
}

func member(level *star.Level, parent *star.Member, name string) *star.Member {
	return &star.Member{Level: level, Parent: parent, Name: name, Key: name}
}

func measure(cube *star.Cube, level *star.Level, col *star.Column, name, agg string) *star.Measure {
	m := &star.Measure{Column: col, Cube: cube, Aggregator: agg}
	m.Member = &star.Member{Level: level, Name: name, Key: name}
	cube.Measures = append(cube.Measures, m)
	return m
}
