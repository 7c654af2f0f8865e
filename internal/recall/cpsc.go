package recall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultCPSCBaseURL is the CPSC recall REST endpoint.
const DefaultCPSCBaseURL = "https://www.saferproducts.gov/RestWebServices/Recall"

// CPSCClient queries the consumer-safety recall source. BaseURL is
// injectable for tests.
type CPSCClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewCPSCClient() *CPSCClient {
	return &CPSCClient{
		BaseURL:    DefaultCPSCBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Search returns recall candidates for one product-name query. An empty
// slice is a normal "no results" outcome.
func (c *CPSCClient) Search(ctx context.Context, query string) ([]CPSCRecall, error) {
	u := fmt.Sprintf("%s?format=json&ProductName=%s", c.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cpsc: query %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cpsc: query %q: status %d", query, resp.StatusCode)
	}

	var recalls []CPSCRecall
	if err := json.NewDecoder(resp.Body).Decode(&recalls); err != nil {
		return nil, fmt.Errorf("cpsc: query %q: decode: %w", query, err)
	}
	return recalls, nil
}
