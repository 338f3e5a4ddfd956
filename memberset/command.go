package memberset

import (
	"fmt"
	"strings"

	"github.com/olapio/starcache/region"
	"github.com/olapio/starcache/star"
	"go.uber.org/multierr"
)

// Effect is the staged, immutable outcome of a command's plan phase:
// a closure that performs the actual cache mutation when committed.
// Splitting plan from commit keeps flush-region computation free of
// observable side effects and makes commands re-plannable.
type Effect func(cache MemberCache) error

// Commit applies the effect.  nil effects are no-ops.
func (e Effect) Commit(cache MemberCache) error {
	if e == nil {
		return nil
	}
	return e(cache)
}

func composeEffects(effects []Effect) Effect {
	return func(cache MemberCache) (err error) {
		for _, e := range effects {
			err = multierr.Append(err, e.Commit(cache))
		}
		return err
	}
}

// Command is a member-edit command.  Plan computes the cell regions
// the pending change invalidates, without mutating anything observable,
// and returns the staged mutation.  The cache manager runs Plan and
// Commit under its single member-mutation lock, never interleaving two
// commands.
type Command interface {
	Plan(cache MemberCache, reader MemberReader) (Effect, []region.CellRegion, error)
	Describe(b *strings.Builder)
}

// NewDeleteCommand deletes the members of a set from the member cache
// and invalidates their cells and descendants.
func NewDeleteCommand(set MemberSet) Command {
	if set == nil {
		panic("memberset: delete command requires a set")
	}
	return &deleteCommand{set: set}
}

// NewAddCommand adds a member under its parent.
func NewAddCommand(m *star.Member) Command {
	if m == nil {
		panic("memberset: add command requires a member")
	}
	return &addCommand{member: m}
}

// NewMoveCommand moves a member under a new parent, executed as a
// delete from the old parent followed by an add to the new one.
func NewMoveCommand(m *star.Member, newParent *star.Member) Command {
	if m == nil || newParent == nil {
		panic("memberset: move command requires a member and a new parent")
	}
	if newParent.Level.Hierarchy != m.Level.Hierarchy {
		panic(fmt.Sprintf("memberset: cannot move %s into hierarchy of %s", m, newParent))
	}
	return &moveCommand{member: m, newParent: newParent}
}

// NewSetPropertyCommand sets properties on every member of a set.
// All members must belong to one level.
func NewSetPropertyCommand(set MemberSet, props map[string]any) Command {
	if set == nil {
		panic("memberset: set-property command requires a set")
	}
	return &setPropertyCommand{set: set, props: props}
}

// NewCompoundCommand runs child commands as one unit: all plans, then
// all commits, in order.
func NewCompoundCommand(children ...Command) Command {
	return &compoundCommand{children: children}
}

type deleteCommand struct {
	set MemberSet
}

func (c *deleteCommand) Plan(cache MemberCache, reader MemberReader) (Effect, []region.CellRegion, error) {
	members, err := c.set.Members(reader)
	if err != nil {
		return nil, nil, err
	}
	if len(members) == 0 {
		return nil, nil, nil
	}
	regions := regionsByHierarchy(members, true)
	staged := make([]*star.Member, len(members))
	copy(staged, members)
	effect := Effect(func(cache MemberCache) error {
		for _, m := range staged {
			removeMember(cache, m)
		}
		return nil
	})
	return effect, regions, nil
}

// removeMember performs the four-part removal: parent's unconstrained
// children, parent's constrained-children entries, the level member
// list, and the member-by-key entry.  Runs under the mutation lock so
// no reader sees a partial removal.
func removeMember(cache MemberCache, m *star.Member) {
	if m.Parent != nil {
		if children, ok := cache.Children(m.Parent); ok {
			cache.PutChildren(m.Parent, without(children, m))
		}
		cache.DropConstrainedChildren(m.Parent)
	}
	if members, ok := cache.LevelMembers(m.Level); ok {
		cache.PutLevelMembers(m.Level, without(members, m))
	}
	cache.RemoveMember(KeyOf(m))
}

func (c *deleteCommand) Describe(b *strings.Builder) {
	b.WriteString("Delete(")
	c.set.Describe(b)
	b.WriteByte(')')
}

type addCommand struct {
	member *star.Member
}

func (c *addCommand) Plan(cache MemberCache, reader MemberReader) (Effect, []region.CellRegion, error) {
	m := c.member
	regions := []region.CellRegion{region.NewMemberRegion(true, m)}
	effect := Effect(func(cache MemberCache) error {
		addMember(cache, m)
		return nil
	})
	return effect, regions, nil
}

// addMember mirrors removeMember.  Cached lists are appended to only
// when already present; an uncached list is not materialized just to
// add one member.
func addMember(cache MemberCache, m *star.Member) {
	if m.Parent != nil {
		if children, ok := cache.Children(m.Parent); ok {
			cache.PutChildren(m.Parent, append(append([]*star.Member{}, children...), m))
		}
		cache.DropConstrainedChildren(m.Parent)
	}
	if members, ok := cache.LevelMembers(m.Level); ok {
		cache.PutLevelMembers(m.Level, append(append([]*star.Member{}, members...), m))
	}
	cache.PutMember(m)
}

func (c *addCommand) Describe(b *strings.Builder) {
	fmt.Fprintf(b, "Add(%s)", c.member)
}

type moveCommand struct {
	member    *star.Member
	newParent *star.Member
}

func (c *moveCommand) Plan(cache MemberCache, reader MemberReader) (Effect, []region.CellRegion, error) {
	m, newParent := c.member, c.newParent
	regions := []region.CellRegion{
		region.NewMemberRegion(true, m),
		region.NewMemberRegion(true, newParent),
	}
	effect := Effect(func(cache MemberCache) error {
		removeMember(cache, m)
		m.Parent = newParent
		addMember(cache, m)
		return nil
	})
	return effect, regions, nil
}

func (c *moveCommand) Describe(b *strings.Builder) {
	fmt.Fprintf(b, "Move(%s to %s)", c.member, c.newParent)
}

type setPropertyCommand struct {
	set   MemberSet
	props map[string]any
}

func (c *setPropertyCommand) Plan(cache MemberCache, reader MemberReader) (Effect, []region.CellRegion, error) {
	members, err := c.set.Members(reader)
	if err != nil {
		return nil, nil, err
	}
	if len(members) == 0 {
		return nil, nil, nil
	}
	level := members[0].Level
	for _, m := range members[1:] {
		if m.Level != level {
			return nil, nil, fmt.Errorf("memberset: set-property members span levels %s and %s", level, m.Level)
		}
	}
	regions := regionsByHierarchy(members, false)
	staged := make([]*star.Member, len(members))
	copy(staged, members)
	props := c.props
	effect := Effect(func(cache MemberCache) error {
		for _, m := range staged {
			if m.Properties == nil {
				m.Properties = make(map[string]any, len(props))
			}
			for k, v := range props {
				m.Properties[k] = v
			}
		}
		return nil
	})
	return effect, regions, nil
}

func (c *setPropertyCommand) Describe(b *strings.Builder) {
	b.WriteString("SetProperty(")
	c.set.Describe(b)
	b.WriteByte(')')
}

type compoundCommand struct {
	children []Command
}

func (c *compoundCommand) Plan(cache MemberCache, reader MemberReader) (Effect, []region.CellRegion, error) {
	var effects []Effect
	var regions []region.CellRegion
	for _, child := range c.children {
		effect, childRegions, err := child.Plan(cache, reader)
		if err != nil {
			return nil, nil, err
		}
		if effect != nil {
			effects = append(effects, effect)
		}
		regions = append(regions, childRegions...)
	}
	if len(effects) == 0 {
		return nil, regions, nil
	}
	return composeEffects(effects), regions, nil
}

func (c *compoundCommand) Describe(b *strings.Builder) {
	b.WriteString("Compound(")
	for i, child := range c.children {
		if i > 0 {
			b.WriteString(", ")
		}
		child.Describe(b)
	}
	b.WriteByte(')')
}

// regionsByHierarchy groups members by hierarchy and builds one member
// region per group.
func regionsByHierarchy(members []*star.Member, descendants bool) []region.CellRegion {
	var order []*star.Hierarchy
	byHierarchy := map[*star.Hierarchy][]*star.Member{}
	for _, m := range members {
		h := m.Hierarchy()
		if _, ok := byHierarchy[h]; !ok {
			order = append(order, h)
		}
		byHierarchy[h] = append(byHierarchy[h], m)
	}
	var regions []region.CellRegion
	for _, h := range order {
		regions = append(regions, region.NewMemberRegion(descendants, byHierarchy[h]...))
	}
	return regions
}

func without(members []*star.Member, m *star.Member) []*star.Member {
	out := make([]*star.Member, 0, len(members))
	for _, member := range members {
		if member != m {
			out = append(out, member)
		}
	}
	return out
}
