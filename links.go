package linkcache

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/graphmirror/linkcache/pkg/adjacency"
	"github.com/graphmirror/linkcache/pkg/chunker"
	"github.com/graphmirror/linkcache/pkg/provider"
)

// LinksParams describes a filtered link query. LinkTypeIDs, when non-empty,
// restricts the returned records; it does not narrow what gets fetched and
// cached, since cached coverage is tracked per endpoint pair, not per type.
type LinksParams struct {
	Primary     []string
	Secondary   []string
	LinkTypeIDs []string
}

// Links returns every cached-or-fetched link with one endpoint in primary and
// the other in secondary, in both orientations. Regions of the cross product
// that earlier requests already covered are answered from the local mirror;
// only the remainder reaches the upstream provider.
func (c *CachedProvider) Links(ctx context.Context, primary, secondary []string) ([]provider.LinkRecord, error) {
	return c.QueryLinks(ctx, LinksParams{Primary: primary, Secondary: secondary})
}

// QueryLinks is Links with an optional link type filter on the result.
func (c *CachedProvider) QueryLinks(ctx context.Context, params LinksParams) ([]provider.LinkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := c.kvHandle(); err != nil {
		return nil, err
	}

	primary := sortedUnique(params.Primary)
	secondary := sortedUnique(params.Secondary)
	if len(primary) == 0 || len(secondary) == 0 {
		return nil, nil
	}

	// Both orientations of the request pass through the cache cycle. The
	// reverse chunks are normally absorbed entirely by the ranges the forward
	// chunks just committed, so they cost a lookup, not a fetch.
	chunks := chunker.ChunkCrossProduct(primary, secondary, chunker.SerializedLength, c.config.MaxChunkSize)
	for _, chunk := range chunks {
		if err := c.updateLinkRanges(ctx, chunk.Sources, chunk.Targets); err != nil {
			return nil, err
		}
	}

	return c.readMirror(primary, secondary, params.LinkTypeIDs)
}

// updateLinkRanges runs one bounded sub-request through the cache cycle:
// resolve the endpoints' current ranges, subtract the covered region from the
// requested block, fetch what remains, then extend the ranges. The whole
// cycle holds the link lock so concurrent requests observe consistent
// coverage.
func (c *CachedProvider) updateLinkRanges(ctx context.Context, primary, secondary []string) error {
	c.linkMu.Lock()
	defer c.linkMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	endpoints := sortedUnique(append(append([]string{}, primary...), secondary...))
	assignments, err := c.ranges.LookupEndpoints(endpoints)
	if err != nil {
		return storageErr(PhaseResolveRanges, err)
	}

	rangeKeys := make([]string, 0, len(assignments))
	for _, key := range assignments {
		rangeKeys = append(rangeKeys, key)
	}
	resolved, err := c.ranges.ResolveRanges(rangeKeys)
	if err != nil {
		return storageErr(PhaseResolveRanges, err)
	}
	rangeOf := func(endpoint string) (adjacency.Range, bool) {
		key, ok := assignments[endpoint]
		if !ok {
			return adjacency.Range{}, false
		}
		r, ok := resolved[key]
		return r, ok
	}

	primarySet := adjacency.NewRange(primary...)
	secondarySet := adjacency.NewRange(secondary...)

	// An endpoint's range covers its links in both roles: {p}×R(p) for a
	// primary endpoint, R(s)×{s} for a secondary one.
	var covering []adjacency.Block
	for _, p := range primary {
		if r, ok := rangeOf(p); ok {
			covering = append(covering, adjacency.Block{
				Sources: adjacency.NewRange(p),
				Targets: r,
			})
		}
	}
	for _, s := range secondary {
		if r, ok := rangeOf(s); ok {
			covering = append(covering, adjacency.Block{
				Sources: r,
				Targets: adjacency.NewRange(s),
			})
		}
	}

	base := adjacency.Block{Sources: primarySet, Targets: secondarySet}
	residual := adjacency.Subtract(base, covering)

	c.log.WithFields(logrus.Fields{
		"endpoints": len(endpoints),
		"covering":  len(covering),
		"residual":  len(residual),
	}).Debug("link coverage resolved")

	if len(residual) > 0 {
		if err := c.fetchResidual(ctx, residual); err != nil {
			return err
		}
	}

	newAssignments := make(map[string]string)
	newRanges := make(map[string]adjacency.Range)
	for _, endpoint := range endpoints {
		old, _ := rangeOf(endpoint)

		var updated adjacency.Range
		switch {
		case primarySet.Contains(endpoint) && secondarySet.Contains(endpoint):
			updated = old.Union(primarySet).Union(secondarySet)
		case primarySet.Contains(endpoint):
			updated = old.Union(secondarySet)
		default:
			updated = old.Union(primarySet)
		}

		// Rehash only on strict growth; updated is a superset of old, so
		// equal size means the set is unchanged.
		if updated.Len() <= old.Len() {
			continue
		}
		key := updated.Key()
		newAssignments[endpoint] = key
		newRanges[key] = updated
	}

	if len(newAssignments) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ranges.Commit(newAssignments, newRanges); err != nil {
		return storageErr(PhaseUpdateRanges, err)
	}
	return nil
}

// fetchResidual queries the upstream provider for the uncovered blocks, one
// call per block (split further if a block alone exceeds the chunk budget),
// and appends the results to the mirror. Upstream errors and cancellations
// propagate as-is.
func (c *CachedProvider) fetchResidual(ctx context.Context, residual []adjacency.Block) error {
	var pieces []chunker.Chunk
	for _, block := range residual {
		pieces = append(pieces, chunker.SplitBlock(
			block.Sources.Members(), block.Targets.Members(),
			chunker.SerializedLength, c.config.MaxChunkSize)...)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var fetched []provider.LinkRecord
	for _, piece := range pieces {
		piece := piece
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			records, err := c.upstream.Links(groupCtx, piece.Sources, piece.Targets)
			if err != nil {
				return err
			}
			mu.Lock()
			fetched = append(fetched, records...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.links.AppendLinks(fetched); err != nil {
		return storageErr(PhaseFetchAndCache, err)
	}
	return nil
}

// readMirror assembles the result from the local mirror: primary sources
// scanned toward secondary targets, then the opposite orientation, deduped by
// (source, target, type). Inputs must be sorted.
func (c *CachedProvider) readMirror(primary, secondary, linkTypeIDs []string) ([]provider.LinkRecord, error) {
	forward, err := c.links.Scan(primary, func(source, target string) bool {
		return containsSorted(secondary, target)
	})
	if err != nil {
		return nil, storageErr(PhaseReadMirror, err)
	}
	// Self links need both endpoints in both collections, so the forward
	// scan already found them.
	backward, err := c.links.Scan(secondary, func(source, target string) bool {
		return target != source && containsSorted(primary, target)
	})
	if err != nil {
		return nil, storageErr(PhaseReadMirror, err)
	}

	var typeFilter map[string]struct{}
	if len(linkTypeIDs) > 0 {
		typeFilter = make(map[string]struct{}, len(linkTypeIDs))
		for _, id := range linkTypeIDs {
			typeFilter[id] = struct{}{}
		}
	}

	seen := make(map[[3]string]struct{}, len(forward)+len(backward))
	out := make([]provider.LinkRecord, 0, len(forward)+len(backward))
	for _, record := range append(forward, backward...) {
		if typeFilter != nil {
			if _, ok := typeFilter[record.TypeID]; !ok {
				continue
			}
		}
		id := [3]string{record.SourceID, record.TargetID, record.TypeID}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, record)
	}
	return out, nil
}

func sortedUnique(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)

	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func containsSorted(sorted []string, id string) bool {
	i := sort.SearchStrings(sorted, id)
	return i < len(sorted) && sorted[i] == id
}
