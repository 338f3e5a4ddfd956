package startest

import "github.com/olapio/starcache/star"

// Reader navigates the fixture's member tree, standing in for the
// engine's member reader in tests.
type Reader struct {
	children map[*star.Member][]*star.Member
	levels   map[*star.Level][]*star.Member
}

// Reader builds a member reader over the fixture's members.
func (f *Fixture) Reader() *Reader {
	r := &Reader{
		children: make(map[*star.Member][]*star.Member),
		levels:   make(map[*star.Level][]*star.Member),
	}
	for _, m := range []*star.Member{
		f.USA, f.Canada,
		f.CA, f.OR, f.BC,
		f.SF, f.LA, f.Portland, f.Vancouver,
		f.Y1997, f.Q1, f.Q2,
	} {
		r.children[m.Parent] = append(r.children[m.Parent], m)
		r.levels[m.Level] = append(r.levels[m.Level], m)
	}
	return r
}

func (r *Reader) Children(m *star.Member) ([]*star.Member, error) {
	return r.children[m], nil
}

func (r *Reader) LevelMembers(l *star.Level) ([]*star.Member, error) {
	return r.levels[l], nil
}

// Remove drops a member from the reader, simulating a database-side
// delete.
func (r *Reader) Remove(m *star.Member) {
	siblings := r.children[m.Parent]
	for i, s := range siblings {
		if s == m {
			r.children[m.Parent] = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	members := r.levels[m.Level]
	for i, s := range members {
		if s == m {
			r.levels[m.Level] = append(members[:i:i], members[i+1:]...)
			break
		}
	}
}
