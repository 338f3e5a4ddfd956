// Package bitkey provides a fixed-width bitset where each bit position
// corresponds to one physical star column.  A bit key is the compact
// "which columns are constrained" fingerprint used to route cell
// requests to segments.
package bitkey

import (
	"strconv"
	"strings"
)

const wordBits = 64

// Key is a fixed-width bitset.  Keys created with the same width are
// comparable; mixing widths is a caller bug.
type Key struct {
	words []uint64
}

// Make returns a key wide enough to hold bit positions [0, width).
func Make(width int) Key {
	if width < 0 {
		panic("bitkey: negative width")
	}
	return Key{words: make([]uint64, (width+wordBits-1)/wordBits)}
}

// Set returns a copy of k with bit pos set.
func (k Key) Set(pos int) Key {
	words := make([]uint64, len(k.words))
	copy(words, k.words)
	words[pos/wordBits] |= 1 << (pos % wordBits)
	return Key{words: words}
}

// Clear returns a copy of k with bit pos cleared.
func (k Key) Clear(pos int) Key {
	words := make([]uint64, len(k.words))
	copy(words, k.words)
	words[pos/wordBits] &^= 1 << (pos % wordBits)
	return Key{words: words}
}

// Get reports whether bit pos is set.
func (k Key) Get(pos int) bool {
	w := pos / wordBits
	if w >= len(k.words) {
		return false
	}
	return k.words[w]&(1<<(pos%wordBits)) != 0
}

// Union returns the bitwise OR of k and other.
func (k Key) Union(other Key) Key {
	if len(other.words) > len(k.words) {
		k, other = other, k
	}
	words := make([]uint64, len(k.words))
	copy(words, k.words)
	for i, w := range other.words {
		words[i] |= w
	}
	return Key{words: words}
}

// Intersect returns the bitwise AND of k and other.
func (k Key) Intersect(other Key) Key {
	if len(other.words) < len(k.words) {
		k, other = other, k
	}
	words := make([]uint64, len(k.words))
	for i := range words {
		words[i] = k.words[i] & other.words[i]
	}
	return Key{words: words}
}

// Equal reports whether k and other have the same bits set.
func (k Key) Equal(other Key) bool {
	long, short := k.words, other.words
	if len(short) > len(long) {
		long, short = short, long
	}
	for i, w := range short {
		if long[i] != w {
			return false
		}
	}
	for _, w := range long[len(short):] {
		if w != 0 {
			return false
		}
	}
	return true
}

// IsSuperset reports whether every bit set in other is also set in k.
func (k Key) IsSuperset(other Key) bool {
	for i, w := range other.words {
		var kw uint64
		if i < len(k.words) {
			kw = k.words[i]
		}
		if w&^kw != 0 {
			return false
		}
	}
	return true
}

// Overlaps reports whether k and other share any set bit.
func (k Key) Overlaps(other Key) bool {
	n := len(k.words)
	if len(other.words) < n {
		n = len(other.words)
	}
	for i := 0; i < n; i++ {
		if k.words[i]&other.words[i] != 0 {
			return true
		}
	}
	return false
}

// IsEmpty reports whether no bit is set.
func (k Key) IsEmpty() bool {
	for _, w := range k.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Hash folds the key into a 64-bit hash suitable for fast negative
// matching.  Trailing zero words do not affect the hash, so keys that
// are Equal always hash equal regardless of width.
func (k Key) Hash() uint64 {
	n := len(k.words)
	for n > 0 && k.words[n-1] == 0 {
		n--
	}
	const prime64 = 1099511628211
	h := uint64(14695981039346656037)
	for _, w := range k.words[:n] {
		h ^= w
		h *= prime64
	}
	return h
}

// String renders the set bit positions, lowest first.
func (k Key) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for i := 0; i < len(k.words)*wordBits; i++ {
		if !k.Get(i) {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(i))
		first = false
	}
	b.WriteByte('}')
	return b.String()
}
