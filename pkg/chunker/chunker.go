// Package chunker splits large cross-product link requests into bounded
// sub-requests so no single upstream query grows past a size budget.
package chunker

// Chunk is one bounded sources×targets sub-request.
type Chunk struct {
	Sources []string
	Targets []string
}

// Measure returns the cost of a single identifier, e.g. its serialized
// length. The budget below is expressed in the same unit.
type Measure func(id string) int

// CountItems measures every identifier as 1, turning the budget into a plain
// item count.
func CountItems(string) int { return 1 }

// SerializedLength measures an identifier by its byte length plus a separator.
func SerializedLength(id string) int { return len(id) + 1 }

// ChunkCrossProduct covers the undirected all-pairs relation between main and
// paired with size-bounded chunks: a forward pass over the larger collection
// and a reverse pass over the smaller one. When the two inputs have identical
// size the reverse pass drops targets already present in the current source
// group, so self pairs (x,x) of a set crossed with itself are requested only
// once. The exclusion is keyed on size equality, not set equality; callers
// rely on exactly this asymmetry.
func ChunkCrossProduct(main, paired []string, measure Measure, maxChunkSize int) []Chunk {
	if len(paired) > len(main) {
		main, paired = paired, main
	}
	sameSize := len(main) == len(paired)

	chunks := chunkDirected(main, paired, measure, maxChunkSize, false)
	chunks = append(chunks, chunkDirected(paired, main, measure, maxChunkSize, sameSize)...)
	return chunks
}

// SplitBlock bounds a single directed sources×targets fetch. Unlike
// ChunkCrossProduct it emits no reverse pass; it is meant for residual blocks
// whose fetch is already bidirectional.
func SplitBlock(sources, targets []string, measure Measure, maxChunkSize int) []Chunk {
	return chunkDirected(sources, targets, measure, maxChunkSize, false)
}

// chunkDirected accumulates a source group until half the budget is consumed,
// then emits target sub-chunks until the combined measure would exceed the
// budget. A single item larger than the whole budget still forms its own
// oversized chunk rather than being dropped.
func chunkDirected(sources, targets []string, measure Measure, maxChunkSize int, skipGroupTargets bool) []Chunk {
	if len(sources) == 0 || len(targets) == 0 {
		return nil
	}

	var chunks []Chunk
	half := maxChunkSize / 2

	i := 0
	for i < len(sources) {
		var group []string
		groupSize := 0
		for i < len(sources) && (len(group) == 0 || groupSize < half) {
			groupSize += measure(sources[i])
			group = append(group, sources[i])
			i++
		}

		var sub []string
		subSize := 0
		for _, target := range targets {
			if skipGroupTargets && containsID(group, target) {
				continue
			}
			cost := measure(target)
			if len(sub) > 0 && groupSize+subSize+cost > maxChunkSize {
				chunks = append(chunks, Chunk{Sources: group, Targets: sub})
				sub = nil
				subSize = 0
			}
			sub = append(sub, target)
			subSize += cost
		}
		if len(sub) > 0 {
			chunks = append(chunks, Chunk{Sources: group, Targets: sub})
		}
	}
	return chunks
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
