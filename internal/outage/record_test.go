package outage

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTile = `{
	"file_data": [
		{
			"desc": {"cluster": true, "cust_a": {"val": 120}},
			"geom": {"p": ["_p~iF~ps|U"]},
			"id": "o-1"
		},
		{
			"desc": {"cluster": false},
			"geom": {"a": ["_p~iF~ps|U_ulLnnqC", "_ulLnnqC_mqNvxq` + "`" + `@"]}
		}
	]
}`

func TestParseTile(t *testing.T) {
	tile, err := ParseTile([]byte(sampleTile))
	require.NoError(t, err)
	require.Len(t, tile.Records, 2)

	point := tile.Records[0]
	assert.True(t, point.Cluster)
	assert.Equal(t, GeometryPoint, point.Geometry.Kind())
	assert.Equal(t, []string{"_p~iF~ps|U"}, point.Geometry.Point)
	assert.Equal(t, "o-1", point.Properties["id"])

	// desc stays in the property bag in full, not just the cluster flag.
	desc, ok := point.Properties["desc"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, desc["cluster"])

	poly := tile.Records[1]
	assert.False(t, poly.Cluster)
	assert.Equal(t, GeometryPolygon, poly.Geometry.Kind())
	assert.Len(t, poly.Geometry.Rings, 2)
	assert.NotContains(t, poly.Properties, "geom")
}

func TestParseTileMalformed(t *testing.T) {
	_, err := ParseTile([]byte(`{"file_data": [{"desc": 7}]}`))
	require.Error(t, err)

	_, err = ParseTile([]byte(`not json`))
	require.Error(t, err)
}

func TestHasCluster(t *testing.T) {
	assert.False(t, (&Tile{}).HasCluster())
	assert.False(t, (&Tile{Records: []Record{{Cluster: false}}}).HasCluster())
	assert.True(t, (&Tile{Records: []Record{{Cluster: false}, {Cluster: true}}}).HasCluster())
}

func TestRecordMarshalRoundTrip(t *testing.T) {
	tile, err := ParseTile([]byte(sampleTile))
	require.NoError(t, err)

	rec := tile.Records[0]
	rec.Source = "https://example.com/public/layer/123.json"

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.Cluster, back.Cluster)
	assert.Equal(t, rec.Geometry, back.Geometry)
	assert.Equal(t, rec.Source, back.Properties["source"])
	assert.Equal(t, "o-1", back.Properties["id"])
}
