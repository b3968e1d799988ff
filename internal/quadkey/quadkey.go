package quadkey

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// Key is a quadtree tile path. Each character selects one of the four
// children of the previous tile, so the depth of a tile equals the length
// of its path.
//
// Quadrant layout (Bing Maps / quadkey convention):
//
//	|-----|-----|
//	|  0  |  1  |
//	|-----|-----|
//	|  2  |  3  |
//	|-----|-----|
type Key string

const (
	// MinZoom is the zoom level of the initial service-area cover.
	MinZoom = 7

	// MaxZoom is the depth cutoff for adaptive refinement. Cluster tiles at
	// this depth are treated as final even though they are still aggregated.
	MaxZoom = 14
)

// Valid reports whether the key is a non-empty string of digits 0-3.
func (k Key) Valid() bool {
	if len(k) == 0 {
		return false
	}
	for i := 0; i < len(k); i++ {
		if k[i] < '0' || k[i] > '3' {
			return false
		}
	}
	return true
}

// Depth returns the zoom level of the tile identified by the key.
func (k Key) Depth() int {
	return len(k)
}

// Child returns the key one zoom level down in quadrant q (0-3).
func (k Key) Child(q int) Key {
	return k + Key('0'+byte(q))
}

// Children returns the four child keys one zoom level down.
func (k Key) Children() [4]Key {
	return [4]Key{k.Child(0), k.Child(1), k.Child(2), k.Child(3)}
}

// Hash returns the last three digits of the path reversed. Some tile
// deployments shard their storage paths by this value and expose it as a
// {qkh} template variable next to {quadkey}.
func (k Key) Hash() string {
	s := string(k)
	if len(s) > 3 {
		s = s[len(s)-3:]
	}
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// FromTile converts an orb map tile to its quadkey path. orb encodes
// quadkeys numerically, so the base-4 expansion is left-padded with zeros
// to the tile's zoom to preserve leading quadrant-0 steps.
func FromTile(t maptile.Tile) Key {
	digits := strconv.FormatUint(t.Quadkey(), 4)
	if pad := int(t.Z) - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return Key(digits)
}
