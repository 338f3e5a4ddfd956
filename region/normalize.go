package region

// Normalize rewrites a region tree into disjunctive normal form over
// crossjoin and union: the result is a UnionRegion whose entries
// contain no nested unions.  The rewrite repeatedly finds the first
// union nested anywhere inside an entry and distributes the entry over
// that union's branches, so
//
//	Crossjoin(a, Union(b1, b2, b3), c)
//
// becomes
//
//	Union(Crossjoin(a, b1, c), Crossjoin(a, b2, c), Crossjoin(a, b3, c))
//
// Each rewrite strictly grows the flat list while consuming one nested
// union, so the loop terminates.  Normalize is idempotent.
func Normalize(r CellRegion) *UnionRegion {
	if r == nil {
		panic("region: normalize of nil region")
	}
	list := flattenUnion(r, nil)
	for i := 0; i < len(list); {
		u := findFirstUnion(list[i])
		if u == nil {
			i++
			continue
		}
		expanded := make([]CellRegion, 0, len(list)+len(u.Regions)-1)
		expanded = append(expanded, list[:i]...)
		for _, branch := range u.Regions {
			expanded = append(expanded, copyReplacing(list[i], u, branch))
		}
		expanded = append(expanded, list[i+1:]...)
		list = expanded
	}
	// Empty entries denote no cells and drop out of the union unless
	// nothing else remains.
	kept := make([]CellRegion, 0, len(list))
	for _, r := range list {
		if _, ok := r.(*EmptyRegion); !ok {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		kept = list[:1]
	}
	return &UnionRegion{Regions: kept}
}

// flattenUnion appends the non-union leaves of a union tree to dst.
func flattenUnion(r CellRegion, dst []CellRegion) []CellRegion {
	if u, ok := r.(*UnionRegion); ok {
		for _, child := range u.Regions {
			dst = flattenUnion(child, dst)
		}
		return dst
	}
	return append(dst, r)
}

// findFirstUnion returns the first union found depth-first inside r,
// or nil.  r itself is returned when it is a union.
func findFirstUnion(r CellRegion) *UnionRegion {
	switch r := r.(type) {
	case *UnionRegion:
		return r
	case *CrossjoinRegion:
		for _, c := range r.Components {
			if u := findFirstUnion(c); u != nil {
				return u
			}
		}
	}
	return nil
}

// copyReplacing returns r with the subtree seek (matched by identity)
// replaced by replacement.  Unrelated subtrees are shared, not copied;
// regions are immutable so sharing is safe.
func copyReplacing(r CellRegion, seek *UnionRegion, replacement CellRegion) CellRegion {
	if r == CellRegion(seek) {
		return replacement
	}
	switch r := r.(type) {
	case *CrossjoinRegion:
		for i, c := range r.Components {
			replaced := copyReplacing(c, seek, replacement)
			if replaced == c {
				continue
			}
			components := make([]CellRegion, len(r.Components))
			copy(components, r.Components)
			components[i] = replaced
			return NewCrossjoin(components...)
		}
	case *UnionRegion:
		for i, c := range r.Regions {
			replaced := copyReplacing(c, seek, replacement)
			if replaced == c {
				continue
			}
			regions := make([]CellRegion, len(r.Regions))
			copy(regions, r.Regions)
			regions[i] = replaced
			return &UnionRegion{Regions: regions}
		}
	}
	return r
}
