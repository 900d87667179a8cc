package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/shelfmatch/backend/internal/domain"
	"golang.org/x/time/rate"
)

// Client handles communication with the external catalog search service.
// It performs exactly one attempt per call; retry policy belongs to the
// batch orchestrator.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	pageSize    int
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new catalog search client. ratePerSec bounds outbound
// request rate against the search service's burst limits.
func NewClient(apiKey, baseURL string, pageSize int, ratePerSec float64) *Client {
	if pageSize <= 0 {
		pageSize = 10
	}
	if ratePerSec <= 0 {
		ratePerSec = 5.0
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		pageSize:    pageSize,
		rateLimiter: rate.NewLimiter(rate.Limit(ratePerSec), 10),
	}
}

// SetDebug enables request/response logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// SearchProducts queries the catalog for candidates matching the detection's
// attributes. An empty list is a valid result meaning "nothing found".
func (c *Client) SearchProducts(ctx context.Context, query domain.SearchQuery) ([]domain.Candidate, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: empty API key", domain.ErrSearchMisconfigured)
	}

	term := BuildSearchTerm(query)
	if term == "" {
		return nil, fmt.Errorf("%w: no searchable attributes", domain.ErrInvalidRequest)
	}

	if c.debug {
		log.Printf("[CATALOG] SearchProducts term: %q (store hint: %q)", term, query.StoreHint)
	}

	endpoint := fmt.Sprintf("%s/v1/products/search", c.baseURL)
	params := url.Values{}
	params.Add("query", term)
	params.Add("api_key", c.apiKey)
	params.Add("pageSize", fmt.Sprintf("%d", c.pageSize))
	if query.Brand != "" {
		params.Add("brand", query.Brand)
	}
	if query.StoreHint != "" {
		params.Add("store", query.StoreHint)
	}

	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrSearchUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "ShelfMatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrSearchUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", domain.ErrSearchMisconfigured, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		if c.debug {
			log.Printf("[CATALOG] API error - Status: %d, Body: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%w: status %d", domain.ErrSearchUnavailable, resp.StatusCode)
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrSearchUnavailable, err)
	}

	candidates, err := MapToCandidates(searchResp.Products)
	if err != nil {
		return nil, fmt.Errorf("%w: map response: %v", domain.ErrSearchUnavailable, err)
	}

	if c.debug {
		log.Printf("[CATALOG] Found %d candidates for term: %q", len(candidates), term)
	}

	return candidates, nil
}
