// Package adjacency provides the set algebra behind the link cache: ranges of
// node identifiers, source×target blocks over them, residual-block
// subtraction, and content-addressed range keys.
package adjacency

import (
	"encoding/hex"
	"sort"

	"github.com/graphmirror/linkcache/pkg/digest"
)

// Range is an immutable set of node identifiers. Members are kept sorted and
// deduplicated, so two ranges with the same elements are structurally equal
// regardless of construction order.
type Range struct {
	members []string
}

// NewRange builds a range from ids, dropping duplicates.
func NewRange(ids ...string) Range {
	if len(ids) == 0 {
		return Range{}
	}
	members := make([]string, len(ids))
	copy(members, ids)
	sort.Strings(members)

	deduped := members[:1]
	for _, id := range members[1:] {
		if id != deduped[len(deduped)-1] {
			deduped = append(deduped, id)
		}
	}
	return Range{members: deduped}
}

// Len returns the number of members.
func (r Range) Len() int {
	return len(r.members)
}

// Members returns the sorted member list. Callers must not mutate it.
func (r Range) Members() []string {
	return r.members
}

// Contains reports whether id is a member.
func (r Range) Contains(id string) bool {
	i := sort.SearchStrings(r.members, id)
	return i < len(r.members) && r.members[i] == id
}

// Equal reports structural equality.
func (r Range) Equal(other Range) bool {
	if len(r.members) != len(other.members) {
		return false
	}
	for i, id := range r.members {
		if other.members[i] != id {
			return false
		}
	}
	return true
}

// Union returns the set union of r and other.
func (r Range) Union(other Range) Range {
	if other.Len() == 0 {
		return r
	}
	if r.Len() == 0 {
		return other
	}
	merged := make([]string, 0, len(r.members)+len(other.members))
	i, j := 0, 0
	for i < len(r.members) && j < len(other.members) {
		switch {
		case r.members[i] < other.members[j]:
			merged = append(merged, r.members[i])
			i++
		case r.members[i] > other.members[j]:
			merged = append(merged, other.members[j])
			j++
		default:
			merged = append(merged, r.members[i])
			i++
			j++
		}
	}
	merged = append(merged, r.members[i:]...)
	merged = append(merged, other.members[j:]...)
	return Range{members: merged}
}

// Intersect returns the set intersection of r and other.
func (r Range) Intersect(other Range) Range {
	var shared []string
	i, j := 0, 0
	for i < len(r.members) && j < len(other.members) {
		switch {
		case r.members[i] < other.members[j]:
			i++
		case r.members[i] > other.members[j]:
			j++
		default:
			shared = append(shared, r.members[i])
			i++
			j++
		}
	}
	return Range{members: shared}
}

// Subtract returns the members of r not present in other.
func (r Range) Subtract(other Range) Range {
	if other.Len() == 0 || r.Len() == 0 {
		return r
	}
	var rest []string
	for _, id := range r.members {
		if !other.Contains(id) {
			rest = append(rest, id)
		}
	}
	if len(rest) == len(r.members) {
		return r
	}
	return Range{members: rest}
}

// Key derives the content-addressed identifier of the range: each member is
// hashed independently, then the per-member digests are chain-hashed in
// sorted member order. The key is a pure function of the member set, and the
// empty range keys to the SHA-256 empty-string digest.
func (r Range) Key() string {
	chain := digest.New()
	for _, id := range r.members {
		memberDigest := digest.Sum256([]byte(id))
		chain.Update(memberDigest[:])
	}
	sum := chain.Digest()
	return hex.EncodeToString(sum[:])
}
