package recall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultFDABaseURL is the openFDA API root.
const DefaultFDABaseURL = "https://api.fda.gov"

// FDACategories are the enforcement endpoints relevant to retail purchases.
var FDACategories = []string{"food", "drug", "device"}

// FDAClient queries openFDA enforcement reports. BaseURL is injectable for
// tests.
type FDAClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewFDAClient() *FDAClient {
	return &FDAClient{
		BaseURL:    DefaultFDABaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type fdaResponse struct {
	Results []FDARecall `json:"results"`
}

// Search queries one enforcement category. openFDA answers 404 when a
// query has no hits; that is a normal empty result, not an error.
func (c *FDAClient) Search(ctx context.Context, category, query string) ([]FDARecall, error) {
	u := fmt.Sprintf("%s/%s/enforcement.json?search=product_description:%s&limit=5",
		c.BaseURL, category, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fda: %s query %q: %w", category, query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fda: %s query %q: status %d", category, query, resp.StatusCode)
	}

	var body fdaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("fda: %s query %q: decode: %w", category, query, err)
	}
	return body.Results, nil
}
