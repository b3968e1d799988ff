// Package descent implements the adaptive quadtree descent over a
// cluster-tiled outage dataset. Each tile either resolves to final outage
// records or, when it still contains cluster aggregates, is opened up into
// its four children one zoom level down, until no cluster remains or the
// depth cutoff is hit.
package descent

import (
	"context"
	"errors"
	"log"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"outagemap/internal/outage"
	"outagemap/internal/quadkey"
)

const (
	// DefaultMaxDepth is the refinement cutoff; cluster tiles at this depth
	// are accepted as final.
	DefaultMaxDepth = quadkey.MaxZoom

	// DefaultMaxInFlight bounds concurrent tile requests across the whole
	// tree. The fan-out is otherwise unconditional, so without a gate a
	// pathological always-clustered branch could hold exponentially many
	// requests in flight.
	DefaultMaxInFlight = 16
)

// Engine walks the quadtree concurrently and aggregates finalized records.
// Branches share no mutable state; each produces its own slice that is
// concatenated at the parent's join point, so the only cross-branch
// coordination is the request gate and first-error cancellation.
type Engine struct {
	fetcher  Fetcher
	maxDepth int
	sem      *semaphore.Weighted
}

// NewEngine creates a descent engine. Non-positive maxDepth or maxInFlight
// select the defaults.
func NewEngine(fetcher Fetcher, maxDepth, maxInFlight int) *Engine {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	return &Engine{
		fetcher:  fetcher,
		maxDepth: maxDepth,
		sem:      semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// Run descends from every key in the initial cover concurrently and returns
// the flat union of all finalized records, each tagged with the URL of the
// tile it was resolved from. Record order is not significant.
//
// The traversal is all-or-nothing: the first fatal fetch error cancels all
// in-flight branches and is returned without a partial result. Missing
// tiles (ErrTileNotFound) contribute nothing and are not errors.
func (e *Engine) Run(ctx context.Context, keys []quadkey.Key) ([]outage.Record, error) {
	g, ctx := errgroup.WithContext(ctx)

	branches := make([][]outage.Record, len(keys))
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			records, err := e.descend(ctx, key)
			if err != nil {
				return err
			}
			branches[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]outage.Record, 0)
	for _, branch := range branches {
		records = append(records, branch...)
	}

	log.Printf("[Descent] Collected %d records from %d top-level tiles", len(records), len(keys))
	return records, nil
}

// descend runs one branch of the traversal: fetch, decide terminal or not,
// and either finalize this tile's records or join the four children.
func (e *Engine) descend(ctx context.Context, key quadkey.Key) ([]outage.Record, error) {
	tile, url, err := e.fetch(ctx, key)
	if errors.Is(err, ErrTileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// A tile is terminal once no record is a cluster aggregate, or when
	// refining further is off the table at the depth cutoff.
	if !tile.HasCluster() || key.Depth() >= e.maxDepth {
		records := make([]outage.Record, len(tile.Records))
		for i, rec := range tile.Records {
			rec.Source = url
			records[i] = rec
		}
		return records, nil
	}

	g, ctx := errgroup.WithContext(ctx)

	var children [4][]outage.Record
	for i, child := range key.Children() {
		i, child := i, child
		g.Go(func() error {
			records, err := e.descend(ctx, child)
			if err != nil {
				return err
			}
			children[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []outage.Record
	for _, branch := range children {
		records = append(records, branch...)
	}
	return records, nil
}

// fetch performs the semaphore-gated tile request. The permit covers only
// the request itself, never the wait on children: a branch that held its
// permit across the join would deadlock the tree as soon as its depth
// exceeded the permit count.
func (e *Engine) fetch(ctx context.Context, key quadkey.Key) (*outage.Tile, string, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, "", err
	}
	defer e.sem.Release(1)

	return e.fetcher.Fetch(ctx, key)
}
