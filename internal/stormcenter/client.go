// Package stormcenter talks to the Storm Center configuration API: the
// handful of sequential lookups that resolve a deployment's current state,
// its cluster-layer tile URL template, its service-area polygon, and its
// published outage totals.
package stormcenter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// DefaultBaseURL is the production Storm Center host.
	DefaultBaseURL = "https://kubra.io"

	// clusterLayerPrefix identifies the layer carrying the quadkey-tiled
	// outage clusters in the deployment configuration.
	clusterLayerPrefix = "CLUSTER_LAYER"
)

// State is the currentState document of a Storm Center view. Only the
// fields the scraper navigates are decoded; the interval paths under data
// and datastatic are kept loose because their key sets vary by deployment.
type State struct {
	DeploymentID string                 `json:"stormcenterDeploymentId"`
	Data         map[string]interface{} `json:"data"`
	Static       map[string]string      `json:"datastatic"`
}

// ClusterDataPath returns the interval path tile URLs are rooted at.
func (s *State) ClusterDataPath() (string, error) {
	return s.dataPath("cluster_interval_generation_data")
}

// SummaryDataPath returns the interval path of the summary totals document.
func (s *State) SummaryDataPath() (string, error) {
	return s.dataPath("interval_generation_data")
}

func (s *State) dataPath(key string) (string, error) {
	value, ok := s.Data[key]
	if !ok {
		return "", fmt.Errorf("state document has no data.%s", key)
	}
	path, ok := value.(string)
	if !ok || path == "" {
		return "", fmt.Errorf("state document data.%s is not a path", key)
	}
	return path, nil
}

// StaticRegion returns the datastatic entry holding the service-area
// documents. Deployments publish a single entry; if several are present the
// lexicographically first key is chosen for determinism.
func (s *State) StaticRegion() (key, path string, err error) {
	if len(s.Static) == 0 {
		return "", "", fmt.Errorf("state document has no datastatic entries")
	}

	keys := make([]string, 0, len(s.Static))
	for k := range s.Static {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys[0], s.Static[keys[0]], nil
}

// Client handles communication with the Storm Center configuration API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a configuration client with system proxy support. An
// empty baseURL selects the production host.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	// Use http.ProxyFromEnvironment to respect system proxy settings
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// State fetches the currentState document for an instance/view pair.
func (c *Client) State(ctx context.Context, instanceID, viewID string) (*State, error) {
	url := fmt.Sprintf("%s/stormcenter/api/v1/stormcenters/%s/views/%s/currentState?preview=false",
		c.baseURL, instanceID, viewID)

	var state State
	if err := c.getJSON(ctx, url, &state); err != nil {
		return nil, fmt.Errorf("failed to fetch current state: %w", err)
	}
	if state.DeploymentID == "" {
		return nil, fmt.Errorf("state document has no stormcenterDeploymentId: %s", url)
	}

	return &state, nil
}

// ClusterTemplate resolves the tile URL template for the view's cluster
// layer: the deployment configuration names the layer, the state document
// names the interval path it is published under.
func (c *Client) ClusterTemplate(ctx context.Context, state *State, instanceID, viewID string) (string, error) {
	url := fmt.Sprintf("%s/stormcenter/api/v1/stormcenters/%s/views/%s/configuration/%s?preview=false",
		c.baseURL, instanceID, viewID, state.DeploymentID)

	var config struct {
		Config struct {
			Layers struct {
				Data struct {
					IntervalGenerationData []struct {
						ID   string `json:"id"`
						Type string `json:"type"`
					} `json:"interval_generation_data"`
				} `json:"data"`
			} `json:"layers"`
		} `json:"config"`
	}
	if err := c.getJSON(ctx, url, &config); err != nil {
		return "", fmt.Errorf("failed to fetch deployment configuration: %w", err)
	}

	var layerID string
	for _, layer := range config.Config.Layers.Data.IntervalGenerationData {
		if strings.HasPrefix(layer.Type, clusterLayerPrefix) {
			layerID = layer.ID
			break
		}
	}
	if layerID == "" {
		return "", fmt.Errorf("deployment configuration has no %s layer: %s", clusterLayerPrefix, url)
	}

	dataPath, err := state.ClusterDataPath()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s/public/%s/{quadkey}.json", c.baseURL, dataPath, layerID), nil
}

// ServiceAreas fetches the polyline-encoded rings bounding the view's
// service areas.
func (c *Client) ServiceAreas(ctx context.Context, state *State) ([]string, error) {
	regionsKey, regionsPath, err := state.StaticRegion()
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/%s/serviceareas.json", c.baseURL, regionsPath, regionsKey)

	var doc struct {
		FileData []struct {
			Geom struct {
				Areas []string `json:"a"`
			} `json:"geom"`
		} `json:"file_data"`
	}
	if err := c.getJSON(ctx, url, &doc); err != nil {
		return nil, fmt.Errorf("failed to fetch service areas: %w", err)
	}
	if len(doc.FileData) == 0 || len(doc.FileData[0].Geom.Areas) == 0 {
		return nil, fmt.Errorf("service areas document has no polygon rings: %s", url)
	}

	return doc.FileData[0].Geom.Areas, nil
}

// ExpectedOutages fetches the outage total the deployment publishes in its
// summary document, for cross-checking a scrape against the official count.
func (c *Client) ExpectedOutages(ctx context.Context, state *State) (int, error) {
	dataPath, err := state.SummaryDataPath()
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/%s/public/summary-1/data.json", c.baseURL, dataPath)

	var doc struct {
		SummaryFileData struct {
			Totals []struct {
				TotalOutages int `json:"total_outages"`
			} `json:"totals"`
		} `json:"summaryFileData"`
	}
	if err := c.getJSON(ctx, url, &doc); err != nil {
		return 0, fmt.Errorf("failed to fetch summary totals: %w", err)
	}
	if len(doc.SummaryFileData.Totals) == 0 {
		return 0, fmt.Errorf("summary document has no totals: %s", url)
	}

	return doc.SummaryFileData.Totals[0].TotalOutages, nil
}

// getJSON performs one GET request and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request for %s failed with status: %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", url, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", url, err)
	}

	return nil
}
