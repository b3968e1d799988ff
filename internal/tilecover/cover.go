// Package tilecover resolves a service-area polygon into the set of
// low-zoom quadkeys the descent starts from.
package tilecover

import (
	"fmt"
	"log"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	orbcover "github.com/paulmach/orb/maptile/tilecover"
	"github.com/twpayne/go-polyline"

	"outagemap/internal/quadkey"
)

// Cover decodes the polyline-encoded rings, takes the bounding rectangle of
// every point across all rings, and returns the quadkeys of the tiles
// covering that rectangle at the given zoom, sorted for determinism.
func Cover(rings []string, zoom maptile.Zoom) ([]quadkey.Key, error) {
	bound, err := Bound(rings)
	if err != nil {
		return nil, err
	}

	set := orbcover.Bound(bound, zoom)

	keys := make([]quadkey.Key, 0, len(set))
	for tile := range set {
		keys = append(keys, quadkey.FromTile(tile))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	log.Printf("[TileCover] %d rings -> %d tiles at zoom %d", len(rings), len(keys), zoom)
	return keys, nil
}

// Bound returns the bounding rectangle of all ring points. Rings are
// encoded as lat/lon pairs; the bound is in orb's lon/lat order.
func Bound(rings []string) (orb.Bound, error) {
	var bound orb.Bound
	points := 0

	for i, ring := range rings {
		coords, _, err := polyline.DecodeCoords([]byte(ring))
		if err != nil {
			return orb.Bound{}, fmt.Errorf("failed to decode service area ring %d: %w", i, err)
		}

		for _, c := range coords {
			pt := orb.Point{c[1], c[0]}
			if points == 0 {
				bound = orb.Bound{Min: pt, Max: pt}
			} else {
				bound = bound.Extend(pt)
			}
			points++
		}
	}

	if points == 0 {
		return orb.Bound{}, fmt.Errorf("service area rings contain no points")
	}

	return bound, nil
}
