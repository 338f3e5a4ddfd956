// Package star holds the minimal star-schema identity the aggregation
// cache needs: column bit positions, measure-to-star mapping, and the
// level/hierarchy identity used to compute invalidation regions.  The
// full metadata model (dimension definitions, aggregate-table
// recognizers, member readers) lives in the embedding engine.
package star

import (
	"errors"
	"fmt"

	"github.com/olapio/starcache/bitkey"
)

// ErrMemberNotFound signals a stale member reference, typically a race
// between an administrative flush and concurrent cache eviction.
// Callers crossing regions with cubes skip the stale cube's
// contribution rather than failing the operation.
var ErrMemberNotFound = errors.New("member not found")

// Star is the physical fact-table-centered schema that a segment's
// columns reference.
type Star struct {
	FactTable string
	columns   []*Column
}

func NewStar(factTable string) *Star {
	return &Star{FactTable: factTable}
}

// AddColumn registers a column and assigns it the next bit position.
func (s *Star) AddColumn(table, name string) *Column {
	c := &Column{Star: s, Table: table, Name: name, Bit: len(s.columns)}
	s.columns = append(s.columns, c)
	return c
}

// Columns returns the registered columns in bit-position order.
func (s *Star) Columns() []*Column { return s.columns }

// BitKeyWidth is the width of bit keys over this star's columns.
func (s *Star) BitKeyWidth() int { return len(s.columns) }

// MakeBitKey returns an empty bit key sized for this star.
func (s *Star) MakeBitKey() bitkey.Key { return bitkey.Make(len(s.columns)) }

// Column is one physical star column.  Bit is its position in the
// star's bit keys.
type Column struct {
	Star  *Star
	Table string
	Name  string
	Bit   int
}

// Expression renders the quoted table.column reference.
func (c *Column) Expression(d Dialect) string {
	return d.QuoteIdentifier(c.Table) + "." + d.QuoteIdentifier(c.Name)
}

func (c *Column) String() string {
	return c.Table + "." + c.Name
}

// Measure is a fact column with an aggregator, owned by a cube.
type Measure struct {
	Column     *Column
	Cube       *Cube
	Member     *Member
	Aggregator string
}

func (m *Measure) String() string {
	if m.Member != nil {
		return m.Member.Name
	}
	return fmt.Sprintf("%s(%s)", m.Aggregator, m.Column)
}

// Cube maps dimensions and measures onto one star.
type Cube struct {
	Name       string
	Star       *Star
	Dimensions []*Dimension
	Measures   []*Measure
}

// MeasuresDimension returns the cube's Measures dimension, or nil if
// the cube has none registered.
func (c *Cube) MeasuresDimension() *Dimension {
	for _, d := range c.Dimensions {
		if d.Measures {
			return d
		}
	}
	return nil
}

// Dimension identifies one axis of a cube.  Measures marks the
// distinguished Measures dimension.
type Dimension struct {
	Name      string
	Measures  bool
	Hierarchy *Hierarchy
}

func (d *Dimension) String() string { return d.Name }

// Hierarchy is a chain of levels within a dimension.
type Hierarchy struct {
	Name      string
	Dimension *Dimension
	Levels    []*Level
	AllMember *Member
}

// Level is one rung of a hierarchy.  Column is the level's key column
// in the star, nil when the level has no base column (which makes any
// constraint on it unsatisfiable for native aggregation).  Unique
// levels have globally unique keys, so ancestor constraints above them
// are redundant.
type Level struct {
	Hierarchy *Hierarchy
	Name      string
	Depth     int
	All       bool
	Unique    bool
	Column    *Column
}

func (l *Level) String() string {
	return l.Hierarchy.Name + ".[" + l.Name + "]"
}

// Member is a point in a hierarchy.  Key is the member's value in its
// level's key column; it may be nil (database NULL).
type Member struct {
	Level      *Level
	Parent     *Member
	Name       string
	Key        any
	Calculated bool
	Expression any // opaque; consumed by the calc-member expander
	Properties map[string]any
}

// IsAll reports whether m is its hierarchy's all member.
func (m *Member) IsAll() bool { return m.Level.All }

// Hierarchy returns the member's hierarchy.
func (m *Member) Hierarchy() *Hierarchy { return m.Level.Hierarchy }

// AncestorAt walks up to the ancestor at the given level, or nil when
// level is not on m's path to the root.
func (m *Member) AncestorAt(level *Level) *Member {
	for a := m; a != nil; a = a.Parent {
		if a.Level == level {
			return a
		}
	}
	return nil
}

// IsDescendantOf reports whether m is other or a descendant of other.
func (m *Member) IsDescendantOf(other *Member) bool {
	for a := m; a != nil; a = a.Parent {
		if a == other {
			return true
		}
	}
	return false
}

func (m *Member) String() string {
	if m.Parent == nil || m.Parent.IsAll() {
		return "[" + m.Level.Hierarchy.Name + "].[" + m.Name + "]"
	}
	return m.Parent.String() + ".[" + m.Name + "]"
}
