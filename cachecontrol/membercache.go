package cachecontrol

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/olapio/starcache/memberset"
	"github.com/olapio/starcache/star"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// memberCache implements memberset.MemberCache with bounded LRU
// storage, or unbounded maps when eviction is disabled (test mode).
// Level member lists are few and load-bearing for range enumeration,
// so they live in a plain map either way.
type memberCache struct {
	members         *lru.Cache[memberset.MemberKey, *star.Member]
	children        *lru.Cache[*star.Member, []*star.Member]
	constrained     map[*star.Member]map[string][]*star.Member
	levels          map[*star.Level][]*star.Member
	pinnedMembers   map[memberset.MemberKey]*star.Member
	pinnedChildren  map[*star.Member][]*star.Member
	hits, misses    prometheus.Counter
	evicted         prometheus.Counter
	evictionEnabled bool
}

var _ memberset.MemberCache = (*memberCache)(nil)

func newMemberCache(entries int, disableEviction bool, factory promauto.Factory) *memberCache {
	c := &memberCache{
		constrained: make(map[*star.Member]map[string][]*star.Member),
		levels:      make(map[*star.Level][]*star.Member),
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "starcache_member_cache_hits_total",
			Help: "Number of hits for a member cache lookup.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "starcache_member_cache_misses_total",
			Help: "Number of misses for a member cache lookup.",
		}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "starcache_member_cache_evicted_total",
			Help: "Number of members evicted from the member cache.",
		}),
		evictionEnabled: !disableEviction,
	}
	if disableEviction {
		c.pinnedMembers = make(map[memberset.MemberKey]*star.Member)
		c.pinnedChildren = make(map[*star.Member][]*star.Member)
		return c
	}
	// lru.NewWithEvict errors only on a non-positive size, which the
	// config layer already rejects.
	c.members, _ = lru.NewWithEvict(entries, func(memberset.MemberKey, *star.Member) {
		c.evicted.Inc()
	})
	c.children, _ = lru.New[*star.Member, []*star.Member](entries)
	return c
}

func (c *memberCache) Member(key memberset.MemberKey) (*star.Member, bool) {
	var m *star.Member
	var ok bool
	if c.evictionEnabled {
		m, ok = c.members.Get(key)
	} else {
		m, ok = c.pinnedMembers[key]
	}
	if ok {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
	return m, ok
}

func (c *memberCache) PutMember(m *star.Member) {
	if c.evictionEnabled {
		c.members.Add(memberset.KeyOf(m), m)
	} else {
		c.pinnedMembers[memberset.KeyOf(m)] = m
	}
}

func (c *memberCache) RemoveMember(key memberset.MemberKey) {
	if c.evictionEnabled {
		c.members.Remove(key)
	} else {
		delete(c.pinnedMembers, key)
	}
}

func (c *memberCache) Children(parent *star.Member) ([]*star.Member, bool) {
	if c.evictionEnabled {
		return c.children.Get(parent)
	}
	children, ok := c.pinnedChildren[parent]
	return children, ok
}

func (c *memberCache) PutChildren(parent *star.Member, children []*star.Member) {
	if c.evictionEnabled {
		c.children.Add(parent, children)
	} else {
		c.pinnedChildren[parent] = children
	}
}

func (c *memberCache) DropConstrainedChildren(parent *star.Member) {
	delete(c.constrained, parent)
}

// PutConstrainedChildren caches a constrained-children query result.
// Constraint is an opaque rendering of the constraint.
func (c *memberCache) PutConstrainedChildren(parent *star.Member, constraint string, children []*star.Member) {
	byConstraint, ok := c.constrained[parent]
	if !ok {
		byConstraint = make(map[string][]*star.Member)
		c.constrained[parent] = byConstraint
	}
	byConstraint[constraint] = children
}

// ConstrainedChildren returns a cached constrained-children result.
func (c *memberCache) ConstrainedChildren(parent *star.Member, constraint string) ([]*star.Member, bool) {
	children, ok := c.constrained[parent][constraint]
	return children, ok
}

func (c *memberCache) LevelMembers(level *star.Level) ([]*star.Member, bool) {
	members, ok := c.levels[level]
	return members, ok
}

func (c *memberCache) PutLevelMembers(level *star.Level, members []*star.Member) {
	c.levels[level] = members
}
