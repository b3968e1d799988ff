package outage

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// GeometryKind discriminates the two wire shapes an outage geometry can take.
type GeometryKind int

const (
	GeometryNone GeometryKind = iota
	GeometryPolygon
	GeometryPoint
)

// Geometry is an outage record's geometry payload. Polygons arrive as one or
// more polyline-encoded rings under "a"; points arrive as a single-element
// polyline list under "p". Exactly one of the two fields is populated.
type Geometry struct {
	Rings []string `json:"a,omitempty"`
	Point []string `json:"p,omitempty"`
}

// Kind returns which variant of the geometry is populated.
func (g Geometry) Kind() GeometryKind {
	switch {
	case len(g.Rings) > 0:
		return GeometryPolygon
	case len(g.Point) > 0:
		return GeometryPoint
	default:
		return GeometryNone
	}
}

// Record is a single entry of a tile's file_data list. The dataset publishes
// an open-ended property bag per record; only the cluster marker and the
// geometry payload are interpreted, everything else is carried through
// opaquely in Properties (including the full "desc" object).
type Record struct {
	Cluster    bool
	Geometry   Geometry
	Properties map[string]interface{}

	// Source is the URL of the tile the record was finalized from. It is
	// empty until the descent tags the record as part of its result.
	Source string
}

// UnmarshalJSON splits the record into the interpreted fields and the opaque
// property bag.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to parse outage record: %w", err)
	}

	if raw, ok := fields["geom"]; ok {
		if err := json.Unmarshal(raw, &r.Geometry); err != nil {
			return fmt.Errorf("failed to parse record geometry: %w", err)
		}
	}

	if raw, ok := fields["desc"]; ok {
		var desc struct {
			Cluster bool `json:"cluster"`
		}
		if err := json.Unmarshal(raw, &desc); err != nil {
			return fmt.Errorf("failed to parse record desc: %w", err)
		}
		r.Cluster = desc.Cluster
	}

	r.Properties = make(map[string]interface{}, len(fields))
	for key, raw := range fields {
		if key == "geom" {
			continue
		}
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("failed to parse record property %q: %w", key, err)
		}
		r.Properties[key] = value
	}

	return nil
}

// MarshalJSON re-emits the wire shape of the record, plus the source URL
// when the record has been finalized. Raw output mode round-trips records
// through this.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Properties)+2)
	for key, value := range r.Properties {
		out[key] = value
	}
	if r.Geometry.Kind() != GeometryNone {
		out["geom"] = r.Geometry
	}
	if r.Source != "" {
		out["source"] = r.Source
	}
	return json.Marshal(out)
}

// Tile is the decoded payload of one quadkey resource.
type Tile struct {
	Records []Record `json:"file_data"`
}

// HasCluster reports whether any record in the tile is an unresolved
// cluster aggregate that needs to be opened up one zoom level down.
func (t *Tile) HasCluster() bool {
	for _, rec := range t.Records {
		if rec.Cluster {
			return true
		}
	}
	return false
}

// ParseTile decodes a tile response body.
func ParseTile(data []byte) (*Tile, error) {
	var tile Tile
	if err := json.Unmarshal(data, &tile); err != nil {
		return nil, fmt.Errorf("failed to parse tile payload: %w", err)
	}
	return &tile, nil
}
