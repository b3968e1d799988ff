package descent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"outagemap/internal/outage"
	"outagemap/internal/quadkey"
)

// ErrTileNotFound is returned for tiles the dataset does not publish. A
// missing tile is an empty subtree, not a failure: sparse coverage is the
// normal case away from populated areas.
var ErrTileNotFound = errors.New("tile not found")

// Fetcher retrieves the decoded content of a single tile. Implementations
// return the resolved URL alongside the tile so the engine can tag records
// with their provenance.
type Fetcher interface {
	Fetch(ctx context.Context, key quadkey.Key) (*outage.Tile, string, error)
}

// HTTPFetcher fetches tiles over HTTP from a templated URL. The template
// carries a {quadkey} placeholder and may additionally carry {qkh}, the
// reversed last-3-digit shard key some deployments use.
type HTTPFetcher struct {
	httpClient *http.Client
	template   string
}

// NewHTTPFetcher creates a tile fetcher for the given URL template with
// system proxy support.
func NewHTTPFetcher(template string) *HTTPFetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		template: template,
	}
}

// TileURL resolves the URL template for a tile.
func (f *HTTPFetcher) TileURL(key quadkey.Key) string {
	url := strings.ReplaceAll(f.template, "{quadkey}", string(key))
	return strings.ReplaceAll(url, "{qkh}", key.Hash())
}

// Fetch downloads and decodes one tile. A 404 maps to ErrTileNotFound; any
// other failure is fatal to the traversal and carries the offending URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, key quadkey.Key) (*outage.Tile, string, error) {
	url := f.TileURL(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, url, fmt.Errorf("failed to create request for tile %s: %w", key, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, url, fmt.Errorf("failed to fetch tile %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, url, ErrTileNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, url, fmt.Errorf("tile request for %s failed with status %d: %s", key, resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, url, fmt.Errorf("failed to read tile %s: %w", key, err)
	}

	tile, err := outage.ParseTile(data)
	if err != nil {
		return nil, url, fmt.Errorf("failed to decode tile %s (%s): %w", key, url, err)
	}

	return tile, url, nil
}
