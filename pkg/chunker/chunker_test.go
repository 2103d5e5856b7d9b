package chunker

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkPairs(chunks []Chunk) map[[2]string]bool {
	pairs := make(map[[2]string]bool)
	for _, chunk := range chunks {
		for _, s := range chunk.Sources {
			for _, t := range chunk.Targets {
				pairs[[2]string{s, t}] = true
				pairs[[2]string{t, s}] = true
			}
		}
	}
	return pairs
}

func TestSmallRequestStaysWhole(t *testing.T) {
	chunks := ChunkCrossProduct([]string{"a", "b", "c"}, []string{"x", "y"}, CountItems, 100)

	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"a", "b", "c"}, chunks[0].Sources)
	assert.Equal(t, []string{"x", "y"}, chunks[0].Targets)
	// Reverse pass follows, uncut.
	assert.Equal(t, []string{"x", "y"}, chunks[1].Sources)
	assert.Equal(t, []string{"a", "b", "c"}, chunks[1].Targets)
}

func TestLargerCollectionBecomesMain(t *testing.T) {
	chunks := ChunkCrossProduct([]string{"x"}, []string{"a", "b", "c"}, CountItems, 100)
	require.NotEmpty(t, chunks)
	assert.Equal(t, []string{"a", "b", "c"}, chunks[0].Sources)
	assert.Equal(t, []string{"x"}, chunks[0].Targets)
}

func TestBudgetSplitsTargets(t *testing.T) {
	main := []string{"s1", "s2", "s3", "s4"}
	paired := []string{"t1", "t2", "t3", "t4", "t5", "t6"}

	chunks := SplitBlock(main, paired, CountItems, 4)
	for _, chunk := range chunks {
		size := len(chunk.Sources) + len(chunk.Targets)
		assert.LessOrEqual(t, size, 4, "chunk %v over budget", chunk)
	}

	pairs := chunkPairs(chunks)
	for _, s := range main {
		for _, p := range paired {
			assert.True(t, pairs[[2]string{s, p}], "pair (%s,%s) missing", s, p)
		}
	}
}

func TestOversizedSingleItemFormsOwnChunk(t *testing.T) {
	measure := func(id string) int { return len(id) }
	huge := "this-identifier-is-far-larger-than-the-whole-budget"

	chunks := SplitBlock([]string{huge}, []string{"t"}, measure, 8)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{huge}, chunks[0].Sources)
	assert.Equal(t, []string{"t"}, chunks[0].Targets)
}

func TestSelfPairsRequestedOnceForSameSet(t *testing.T) {
	ids := []string{"a", "b", "c"}
	chunks := ChunkCrossProduct(ids, ids, CountItems, 100)

	selfRequests := map[string]int{}
	for _, chunk := range chunks {
		for _, s := range chunk.Sources {
			for _, t := range chunk.Targets {
				if s == t {
					selfRequests[s]++
				}
			}
		}
	}
	for _, id := range ids {
		assert.Equal(t, 1, selfRequests[id], "self pair (%s,%s)", id, id)
	}
}

// The exclusion is keyed on size equality, not set equality: two different
// same-size sets sharing an element also skip that element in the reverse
// pass. Documented behavior, not a bug.
func TestSelfPairExclusionIsSizeKeyed(t *testing.T) {
	chunks := ChunkCrossProduct([]string{"a", "shared"}, []string{"shared", "z"}, CountItems, 100)

	reverseSelf := false
	for _, chunk := range chunks[1:] {
		for _, s := range chunk.Sources {
			for _, t := range chunk.Targets {
				if s == t {
					reverseSelf = true
				}
			}
		}
	}
	assert.False(t, reverseSelf, "reverse pass must not re-request shared self pairs")

	pairs := chunkPairs(chunks)
	assert.True(t, pairs[[2]string{"shared", "shared"}], "forward pass still covers (shared,shared)")
}

func TestChunkingCompletenessProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(17))

	for trial := 0; trial < 200; trial++ {
		main := make([]string, rng.Intn(12)+1)
		for i := range main {
			main[i] = fmt.Sprintf("m%d", rng.Intn(15))
		}
		paired := make([]string, rng.Intn(12)+1)
		for i := range paired {
			paired[i] = fmt.Sprintf("p%d", rng.Intn(15))
		}
		budget := rng.Intn(10) + 1

		pairs := chunkPairs(ChunkCrossProduct(main, paired, CountItems, budget))
		for _, a := range main {
			for _, b := range paired {
				require.True(t, pairs[[2]string{a, b}],
					"trial %d: unordered pair (%s,%s) missing, budget %d", trial, a, b, budget)
			}
		}
	}
}

func TestEmptyInputs(t *testing.T) {
	assert.Empty(t, ChunkCrossProduct(nil, []string{"a"}, CountItems, 10))
	assert.Empty(t, ChunkCrossProduct([]string{"a"}, nil, CountItems, 10))
	assert.Empty(t, SplitBlock(nil, nil, CountItems, 10))
}
