// Package civitai is a rate-limited client for the third-party model
// metadata service consulted for adapter trigger words the renderer
// itself cannot supply.
package civitai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/palette/internal/common"
)

const (
	DefaultBaseURL   = "https://civitai.com/api/v1"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 2 // requests per second; a public, shared API
)

// Status classifies a lookup outcome so the Metadata Cache can apply its
// asymmetric caching policy: definitive results cache, transient ones don't.
type Status int

const (
	StatusFound    Status = iota // definitive hit
	StatusNotFound               // 404 — definitive empty
	StatusTransient               // network error or 429 — do not cache
)

// Client queries the remote model metadata service by content hash or by
// text search, never blocking the submission path (see internal/metadata).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithAPIKey sets the optional bearer token.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithBaseURL overrides the service base URL, for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a civitai client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     common.NewSilentLogger(),
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type modelVersion struct {
	TrainedWords []string `json:"trainedWords"`
}

// ByHash looks up an adapter's trigger words by its embedded content hash.
func (c *Client) ByHash(ctx context.Context, hash string) ([]string, Status) {
	var mv modelVersion
	status := c.get(ctx, "/model-versions/by-hash/"+url.PathEscape(hash), &mv)
	if status != StatusFound {
		return nil, status
	}
	return mv.TrainedWords, StatusFound
}

type searchResult struct {
	Items []struct {
		ModelVersions []modelVersion `json:"modelVersions"`
	} `json:"items"`
}

// SearchByName looks up trigger words by a fuzzy text match on the
// adapter's filename stem, returning the first model version's words.
func (c *Client) SearchByName(ctx context.Context, term string) ([]string, Status) {
	params := url.Values{}
	params.Set("query", term)
	params.Set("types", "LORA")
	params.Set("limit", "5")

	var result searchResult
	status := c.get(ctx, "/models?"+params.Encode(), &result)
	if status != StatusFound {
		return nil, status
	}
	for _, item := range result.Items {
		if len(item.ModelVersions) > 0 && len(item.ModelVersions[0].TrainedWords) > 0 {
			return item.ModelVersions[0].TrainedWords, StatusFound
		}
	}
	return nil, StatusNotFound
}

// NormalizeStem strips a trailing version suffix and replaces separators
// with spaces, as a second-pass search term.
func NormalizeStem(stem string) string {
	stem = strings.ReplaceAll(stem, "_", " ")
	stem = strings.ReplaceAll(stem, "-", " ")
	fields := strings.Fields(stem)
	if len(fields) > 1 {
		last := fields[len(fields)-1]
		if strings.HasPrefix(strings.ToLower(last), "v") && len(last) <= 4 {
			fields = fields[:len(fields)-1]
		}
	}
	return strings.Join(fields, " ")
}

func (c *Client) get(ctx context.Context, path string, result interface{}) Status {
	if err := c.limiter.Wait(ctx); err != nil {
		return StatusTransient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return StatusTransient
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("path", path).Msg("civitai request failed transiently")
		return StatusTransient
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return StatusNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return StatusTransient
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("civitai request failed")
		return StatusTransient
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return StatusTransient
	}
	return StatusFound
}
