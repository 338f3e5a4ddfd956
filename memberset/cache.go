package memberset

import "github.com/olapio/starcache/star"

// MemberKey addresses a member in the member-by-key cache.
type MemberKey struct {
	Level  *star.Level
	Parent *star.Member
	Name   string
}

// KeyOf returns the cache key of a member.
func KeyOf(m *star.Member) MemberKey {
	return MemberKey{Level: m.Level, Parent: m.Parent, Name: m.Name}
}

// MemberCache is the mutation surface of the engine's member cache.
// All mutation happens through committed command effects under the
// cache manager's single lock; this package never mutates a cache
// during the plan phase.
//
// The cache is allowed to forget entries at any time (bounded caches
// evict), which is why the "cached" query methods return a found flag:
// an absent entry means "not cached", never "no such member".
type MemberCache interface {
	// Member returns the cached member for a key.
	Member(key MemberKey) (*star.Member, bool)
	PutMember(m *star.Member)
	RemoveMember(key MemberKey)

	// Children returns the cached unconstrained-children list of a
	// parent.
	Children(parent *star.Member) ([]*star.Member, bool)
	PutChildren(parent *star.Member, children []*star.Member)
	// ConstrainedChildren returns the cached children of a parent
	// under an opaque constraint rendering, as loaded by a
	// constrained-children query.
	ConstrainedChildren(parent *star.Member, constraint string) ([]*star.Member, bool)
	PutConstrainedChildren(parent *star.Member, constraint string, children []*star.Member)
	// DropConstrainedChildren forgets every constrained-children
	// entry for the parent.
	DropConstrainedChildren(parent *star.Member)

	// LevelMembers returns the cached member list of a level.
	LevelMembers(level *star.Level) ([]*star.Member, bool)
	PutLevelMembers(level *star.Level, members []*star.Member)
}
