package adjacency

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeDeduplicatesAndSorts(t *testing.T) {
	r := NewRange("c", "a", "b", "a", "c")
	assert.Equal(t, []string{"a", "b", "c"}, r.Members())
	assert.Equal(t, 3, r.Len())
	assert.True(t, r.Contains("b"))
	assert.False(t, r.Contains("d"))
}

func TestRangeSetOperations(t *testing.T) {
	left := NewRange("a", "b", "c")
	right := NewRange("b", "c", "d")

	assert.Equal(t, []string{"a", "b", "c", "d"}, left.Union(right).Members())
	assert.Equal(t, []string{"b", "c"}, left.Intersect(right).Members())
	assert.Equal(t, []string{"a"}, left.Subtract(right).Members())
	assert.True(t, left.Equal(NewRange("c", "b", "a")))
	assert.False(t, left.Equal(right))
}

func TestRangeKeyOrderIndependence(t *testing.T) {
	ids := []string{"alpha", "beta", "gamma", "delta", "épsilon"}
	want := NewRange(ids...).Key()

	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([]string, len(ids))
		copy(shuffled, ids)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		require.Equal(t, want, NewRange(shuffled...).Key())
	}

	// Duplicated input must not change the key either.
	assert.Equal(t, want, NewRange(append(ids, "beta", "alpha")...).Key())
}

func TestEmptyRangeKeyIsEmptyStringDigest(t *testing.T) {
	// The chaining construction hashes zero per-member digests, which is the
	// SHA-256 of the empty string.
	const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	assert.Equal(t, emptySHA256, NewRange().Key())
}

func TestRangeKeyDistinguishesContents(t *testing.T) {
	assert.NotEqual(t, NewRange("a", "b").Key(), NewRange("a", "c").Key())
	assert.NotEqual(t, NewRange("a").Key(), NewRange().Key())
	// Member boundaries matter: {"ab"} and {"a","b"} differ.
	assert.NotEqual(t, NewRange("ab").Key(), NewRange("a", "b").Key())
}

func TestSubtractEmptyCoveringReturnsBase(t *testing.T) {
	base := Block{Sources: NewRange("a", "b"), Targets: NewRange("x", "y")}
	residual := Subtract(base, nil)

	require.Len(t, residual, 1)
	assert.True(t, residual[0].Sources.Equal(base.Sources))
	assert.True(t, residual[0].Targets.Equal(base.Targets))
}

func TestSubtractFullyCovered(t *testing.T) {
	base := Block{Sources: NewRange("a", "b"), Targets: NewRange("x", "y")}
	covering := []Block{
		{Sources: NewRange("a"), Targets: NewRange("x", "y", "z")},
		{Sources: NewRange("b", "q"), Targets: NewRange("x", "y")},
	}
	assert.Empty(t, Subtract(base, covering))
}

func TestSubtractKnownRangesScenario(t *testing.T) {
	// Sources c and x against targets {a,f}; c already knows {a,b,e}.
	base := Block{Sources: NewRange("c", "x"), Targets: NewRange("a", "f")}
	covering := []Block{
		{Sources: NewRange("c"), Targets: NewRange("a", "b", "e")},
	}

	residual := Subtract(base, covering)
	require.Len(t, residual, 2)
	assert.Equal(t, []string{"c"}, residual[0].Sources.Members())
	assert.Equal(t, []string{"f"}, residual[0].Targets.Members())
	assert.Equal(t, []string{"x"}, residual[1].Sources.Members())
	assert.Equal(t, []string{"a", "f"}, residual[1].Targets.Members())
}

func TestSubtractMergesEqualLeftoverTargetSets(t *testing.T) {
	base := Block{Sources: NewRange("a", "b", "c"), Targets: NewRange("x", "y")}
	covering := []Block{
		{Sources: NewRange("a"), Targets: NewRange("x")},
		{Sources: NewRange("b"), Targets: NewRange("x")},
	}

	residual := Subtract(base, covering)
	require.Len(t, residual, 2)
	// a and b share the leftover {y} and must be merged into one block.
	assert.Equal(t, []string{"a", "b"}, residual[0].Sources.Members())
	assert.Equal(t, []string{"y"}, residual[0].Targets.Members())
	assert.Equal(t, []string{"c"}, residual[1].Sources.Members())
	assert.Equal(t, []string{"x", "y"}, residual[1].Targets.Members())

	seenTargets := map[string]bool{}
	for _, block := range residual {
		key := fmt.Sprint(block.Targets.Members())
		assert.False(t, seenTargets[key], "duplicate target set %s", key)
		seenTargets[key] = true
	}
}

type pair struct{ src, tgt string }

func blockPairs(blocks ...Block) map[pair]int {
	pairs := make(map[pair]int)
	for _, block := range blocks {
		for _, s := range block.Sources.Members() {
			for _, t := range block.Targets.Members() {
				pairs[pair{s, t}]++
			}
		}
	}
	return pairs
}

func randomRange(rng *rand.Rand, universe []string) Range {
	var picked []string
	for _, id := range universe {
		if rng.Intn(2) == 0 {
			picked = append(picked, id)
		}
	}
	return NewRange(picked...)
}

// Randomized small universes: the residual pairs must equal exactly
// base minus the union of covering pairs, for any covering order.
func TestSubtractCoverageProperty(t *testing.T) {
	universe := []string{"a", "b", "c", "d", "e", "f"}
	rng := rand.New(rand.NewSource(99))

	for trial := 0; trial < 500; trial++ {
		base := Block{Sources: randomRange(rng, universe), Targets: randomRange(rng, universe)}
		covering := make([]Block, rng.Intn(4))
		for i := range covering {
			covering[i] = Block{Sources: randomRange(rng, universe), Targets: randomRange(rng, universe)}
		}

		expected := blockPairs(base)
		for p := range blockPairs(covering...) {
			delete(expected, p)
		}

		got := blockPairs(Subtract(base, covering)...)
		require.Len(t, got, len(expected), "trial %d: wrong residual size", trial)
		for p, count := range got {
			require.Equal(t, 1, count, "trial %d: pair %v duplicated across blocks", trial, p)
			_, ok := expected[p]
			require.True(t, ok, "trial %d: pair %v over-covered", trial, p)
		}

		// Reordering the covering blocks must not change the residual pairs.
		reversed := make([]Block, len(covering))
		for i, cov := range covering {
			reversed[len(covering)-1-i] = cov
		}
		assert.Equal(t, got, blockPairs(Subtract(base, reversed)...), "trial %d", trial)
	}
}
