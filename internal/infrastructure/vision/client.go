package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/shelfmatch/backend/internal/domain"
)

// Client handles communication with the external visual comparison service.
// It supports both call shapes: one binary comparison per candidate, and one
// multi-candidate selection call.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	debug      bool
}

// NewClient creates a new visual comparison client
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

// SetDebug enables request/response logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// CompareProduct asks whether one candidate's reference image depicts the
// same physical product as the detection crop.
func (c *Client) CompareProduct(ctx context.Context, req domain.CompareRequest) (*domain.CompareResult, error) {
	var result domain.CompareResult
	if err := c.post(ctx, "/v1/compare", req, &result); err != nil {
		return nil, err
	}

	if !validStatus(result.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrVisualMatchUnavailable, result.Status)
	}
	result.Confidence = clamp01(result.Confidence)
	result.Similarity = clamp01(result.Similarity)

	if c.debug {
		log.Printf("[VISION] Compare %s: status=%s confidence=%.2f similarity=%.2f",
			req.CandidateKey, result.Status, result.Confidence, result.Similarity)
	}

	return &result, nil
}

// SelectProduct hands the service the full candidate set and asks for a
// single selection with confidence and reasoning.
func (c *Client) SelectProduct(ctx context.Context, req domain.SelectRequest) (*domain.SelectResult, error) {
	if len(req.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to select from", domain.ErrInvalidRequest)
	}

	var result domain.SelectResult
	if err := c.post(ctx, "/v1/select", req, &result); err != nil {
		return nil, err
	}
	result.Confidence = clamp01(result.Confidence)

	if c.debug {
		log.Printf("[VISION] Select: key=%q confidence=%.2f", result.SelectedKey, result.Confidence)
	}

	return &result, nil
}

// post executes a JSON POST and decodes the response into out. All transport
// and server failures map to ErrVisualMatchUnavailable so callers can degrade
// the affected candidate instead of aborting.
func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "ShelfMatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrVisualMatchUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrVisualMatchUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		if c.debug {
			log.Printf("[VISION] API error - Status: %d, Body: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("%w: status %d", domain.ErrVisualMatchUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrVisualMatchUnavailable, err)
	}

	return nil
}

func validStatus(s domain.MatchStatus) bool {
	switch s {
	case domain.StatusIdentical, domain.StatusAlmostSame, domain.StatusNotMatch:
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
