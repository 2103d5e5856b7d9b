package adjacency

import "strings"

// Block is a sources×targets cross-product region of the adjacency space,
// meaning "every connection between each source and each target is known".
type Block struct {
	Sources Range
	Targets Range
}

// Subtract computes the residual sub-blocks of base not covered by any of the
// covering blocks: the returned blocks union to exactly
// base.Sources×base.Targets minus the union of the covering cross-products.
// Sources that end up with an identical leftover target set are merged into
// one block, so no two returned blocks share a target set. The result is
// independent of the order of the covering blocks.
func Subtract(base Block, covering []Block) []Block {
	covered := make(map[string]Range)
	for _, cov := range covering {
		sources := cov.Sources.Intersect(base.Sources)
		if sources.Len() == 0 {
			continue
		}
		targets := cov.Targets.Intersect(base.Targets)
		if targets.Len() == 0 {
			continue
		}
		for _, src := range sources.Members() {
			covered[src] = covered[src].Union(targets)
		}
	}

	type group struct {
		sources []string
		targets Range
	}
	var order []string
	groups := make(map[string]*group)

	for _, src := range base.Sources.Members() {
		leftover := base.Targets.Subtract(covered[src])
		if leftover.Len() == 0 {
			continue
		}
		key := strings.Join(leftover.Members(), "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{targets: leftover}
			groups[key] = g
			order = append(order, key)
		}
		g.sources = append(g.sources, src)
	}

	residual := make([]Block, 0, len(order))
	for _, key := range order {
		g := groups[key]
		residual = append(residual, Block{
			Sources: NewRange(g.sources...),
			Targets: g.targets,
		})
	}
	return residual
}
