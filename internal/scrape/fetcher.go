package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jumppguru/backend/pkg/utils"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Fetcher pulls a page and extracts its visible paragraph text, truncated to
// charLimit to bound what flows into summarization.
type Fetcher struct {
	httpClient *http.Client
	charLimit  int
}

func NewFetcher(timeout time.Duration, charLimit int) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if charLimit <= 0 {
		charLimit = 3000
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		charLimit:  charLimit,
	}
}

// Fetch returns the paragraph text of a page. Any network, HTTP or parse
// problem is an error; the caller decides whether that sinks the request.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch of %s returned status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	text := strings.Join(paragraphs, " ")
	return utils.Truncate(text, f.charLimit), nil
}
