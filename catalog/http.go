package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPCatalog looks up contracted-service status from an external
// catalog service over HTTP. This is a thin boundary adapter: no
// library in the retrieval pack specializes in this internal,
// single-endpoint status lookup, so it is built directly on net/http
// (see DESIGN.md's stdlib justification for this component).
type HTTPCatalog struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPCatalog(baseURL string, client *http.Client) *HTTPCatalog {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCatalog{BaseURL: baseURL, Client: client}
}

type statusResponse struct {
	Active bool `json:"active"`
}

func (c *HTTPCatalog) IsActive(ctx context.Context, contractedServiceID string) (bool, error) {
	url := fmt.Sprintf("%s/contracted-services/%s/status", c.BaseURL, contractedServiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("catalog: unexpected status %d for %s", resp.StatusCode, contractedServiceID)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.Active, nil
}
