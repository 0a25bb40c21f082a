// Package xoso fetches and parses the official live draw pages. Fetching
// carries its own request-level retry policy; parsing never fails on
// missing prize numbers, because an absent number just means the draw has
// not revealed it yet.
package xoso

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ArowuTest/xoso-live-backend/internal/models"
)

const maxResponseBodySize = 2 << 20 // 2MB

// Client fetches live draw pages over HTTP.
type Client struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

// NewClient creates a page client. timeout bounds each individual attempt;
// maxRetries bounds attempts within one fetch call, with exponential
// backoff between them.
func NewClient(baseURL string, timeout time.Duration, maxRetries int) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		maxRetries: maxRetries,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

// pageURL builds the live-results URL for one draw.
func (c *Client) pageURL(region *models.Region, date string) string {
	return fmt.Sprintf("%s/truc-tiep/%s/%s/%s.html", c.baseURL, region.Station, region.Tinh, date)
}

// FetchResults fetches and parses the live page for one draw. Network and
// HTTP-status failures are retried up to the configured bound; a page with
// no published numbers yet parses to an empty SlotValues, not an error.
func (c *Client) FetchResults(ctx context.Context, region *models.Region, date string) (models.SlotValues, error) {
	url := c.pageURL(region, date)

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, err := c.fetchOnce(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		return ParsePage(body, region)
	}
	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "xoso-live-backend/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
}

// Close releases idle connections.
func (c *Client) Close() {
	if t, ok := c.httpClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}
