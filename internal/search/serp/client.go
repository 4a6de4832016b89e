package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/jumppguru/backend/pkg/logger"
)

const baseURL = "https://serpapi.com/search"

// Client resolves a query to an ordered list of candidate URLs via the
// SerpAPI Google engine.
type Client struct {
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Search returns up to maxResults organic result URLs in ranking order. An
// empty slice with a nil error means the web had nothing for this query.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("api_key", c.apiKey)
	params.Add("engine", "google")
	params.Add("num", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var searchResp struct {
		OrganicResults []struct {
			Link string `json:"link"`
		} `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	urls := make([]string, 0, len(searchResp.OrganicResults))
	for _, r := range searchResp.OrganicResults {
		if r.Link == "" {
			continue
		}
		urls = append(urls, r.Link)
		if len(urls) >= maxResults {
			break
		}
	}

	logger.Info("web search completed",
		zap.String("query", query),
		zap.Int("urls", len(urls)),
	)

	return urls, nil
}
