package descent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outagemap/internal/quadkey"
)

func TestTileURLSubstitution(t *testing.T) {
	f := NewHTTPFetcher("https://host.test/data/public/layer-1/{quadkey}.json")
	assert.Equal(t, "https://host.test/data/public/layer-1/0231330.json", f.TileURL("0231330"))

	// Deployments sharding by the reversed suffix use {qkh} as well.
	f = NewHTTPFetcher("https://host.test/{qkh}/public/layer-1/{quadkey}.json")
	assert.Equal(t, "https://host.test/033/public/layer-1/0231330.json", f.TileURL("0231330"))
}

func TestFetchDecodesTile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/layer-1/12.json", r.URL.Path)
		w.Write([]byte(`{"file_data": [{"desc": {"cluster": false}, "geom": {"p": ["_p~iF~ps|U"]}}]}`))
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.URL + "/public/layer-1/{quadkey}.json")
	tile, url, err := f.Fetch(context.Background(), quadkey.Key("12"))
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/public/layer-1/12.json", url)
	require.Len(t, tile.Records, 1)
	assert.False(t, tile.HasCluster())
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.URL + "/{quadkey}.json")
	_, _, err := f.Fetch(context.Background(), quadkey.Key("102"))
	require.ErrorIs(t, err, ErrTileNotFound)
}

func TestFetchServerErrorIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.URL + "/{quadkey}.json")
	_, _, err := f.Fetch(context.Background(), quadkey.Key("102"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTileNotFound)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "102")
}

func TestFetchMalformedPayloadIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"file_data": `))
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.URL + "/{quadkey}.json")
	_, _, err := f.Fetch(context.Background(), quadkey.Key("3"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTileNotFound)
}

func TestFetchHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewHTTPFetcher(server.URL + "/{quadkey}.json")
	_, _, err := f.Fetch(ctx, quadkey.Key("0"))
	require.Error(t, err)
}
