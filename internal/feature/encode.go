// Package feature converts finalized outage records into GeoJSON features.
package feature

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"

	"outagemap/internal/outage"
)

// Collection builds a GeoJSON feature collection from finalized records.
// Each record becomes one feature carrying its property bag plus a "source"
// property with the tile URL it was resolved from; the geometry payload is
// decoded out of the bag into the feature geometry itself.
func Collection(records []outage.Record) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()

	for i, rec := range records {
		geom, err := decodeGeometry(rec.Geometry)
		if err != nil {
			return nil, fmt.Errorf("failed to decode geometry of record %d (%s): %w", i, rec.Source, err)
		}

		f := geojson.NewFeature(geom)
		for key, value := range rec.Properties {
			f.Properties[key] = value
		}
		if rec.Source != "" {
			f.Properties["source"] = rec.Source
		}

		fc.Append(f)
	}

	return fc, nil
}

// decodeGeometry decodes the compact line encoding into orb geometry.
// Rings and points are encoded as lat/lon pairs and come out in GeoJSON's
// lon/lat order.
func decodeGeometry(g outage.Geometry) (orb.Geometry, error) {
	switch g.Kind() {
	case outage.GeometryPolygon:
		poly := make(orb.Polygon, 0, len(g.Rings))
		for i, encoded := range g.Rings {
			coords, _, err := polyline.DecodeCoords([]byte(encoded))
			if err != nil {
				return nil, fmt.Errorf("ring %d: %w", i, err)
			}
			ring := make(orb.Ring, len(coords))
			for j, c := range coords {
				ring[j] = orb.Point{c[1], c[0]}
			}
			poly = append(poly, ring)
		}
		return poly, nil

	case outage.GeometryPoint:
		coords, _, err := polyline.DecodeCoords([]byte(g.Point[0]))
		if err != nil {
			return nil, err
		}
		if len(coords) == 0 {
			return nil, fmt.Errorf("point payload decodes to no coordinates")
		}
		return orb.Point{coords[0][1], coords[0][0]}, nil

	default:
		return nil, fmt.Errorf("record has no geometry payload")
	}
}
