// Package renderer is a typed HTTP client to the local image-generation
// backend: reachability, node introspection, submit, poll, and image
// fetch/upload. The client never retries; retry policy is the caller's.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
)

const (
	DefaultTimeout    = 300 * time.Second
	DefaultPingTimeout = 5 * time.Second
)

// Client implements interfaces.RendererClient over the renderer's HTTP surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout used for submit/poll/fetch calls.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a renderer client against baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ErrorClass classifies a renderer transport failure for caller-side policy.
type ErrorClass string

const (
	ClassUnreachable ErrorClass = "unreachable"
	ClassProtocol    ErrorClass = "protocol"
	ClassShape       ErrorClass = "shape"
)

// APIError is the typed error the client returns for renderer failures; its
// Class says whether the renderer was unreachable, answered with an error
// status, or answered with an unexpected shape. Submit is the exception for
// transport failures: it returns those as a plain wrapped error.
type APIError struct {
	Class    ErrorClass
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	if e.Class == ClassShape {
		return fmt.Sprintf("renderer: unexpected response shape from %s: %s", e.Endpoint, e.Body)
	}
	return fmt.Sprintf("renderer: %s returned status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Ping probes reachability with a short independent timeout; any status
// other than 200, or a transport failure, reports unreachable.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/system_stats", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ObjectInfo introspects the renderer's installed node classes. Used once
// at boot and never cached negatively.
func (c *Client) ObjectInfo(ctx context.Context) (map[string]interfaces.NodeSchema, error) {
	var result map[string]interfaces.NodeSchema
	if err := c.getJSON(ctx, "/object_info", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Submit POSTs a graph and returns the backend's assigned prompt id.
func (c *Client) Submit(ctx context.Context, graph interfaces.Graph) (string, error) {
	body, err := json.Marshal(map[string]interfaces.Graph{"prompt": graph})
	if err != nil {
		return "", fmt.Errorf("marshaling graph: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting graph: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Class: ClassProtocol, Endpoint: "/prompt", Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &APIError{Class: ClassShape, Endpoint: "/prompt", Body: err.Error()}
	}
	return parsed.PromptID, nil
}

// historyEnvelope is the per-prompt-id wrapper the renderer wraps history
// entries in: {"<prompt_id>": {...}}.
type historyEnvelope struct {
	Status struct {
		Completed bool   `json:"completed"`
		StatusStr string `json:"status_str"`
	} `json:"status"`
	Outputs map[string]struct {
		Images []interfaces.HistoryImage `json:"images"`
	} `json:"outputs"`
}

// History polls the history endpoint. Returns nil (not an error) on 404 or
// network failure — callers treat nil as "not ready".
func (c *Client) History(ctx context.Context, backendPromptID string) (*interfaces.HistoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+backendPromptID, nil)
	if err != nil {
		return nil, nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("prompt_id", backendPromptID).Msg("History poll failed transiently")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Class: ClassProtocol, Endpoint: "/history", Status: resp.StatusCode, Body: string(body)}
	}

	var envelopes map[string]historyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelopes); err != nil {
		return nil, &APIError{Class: ClassShape, Endpoint: "/history", Body: err.Error()}
	}

	env, ok := envelopes[backendPromptID]
	if !ok {
		return nil, nil
	}

	entry := &interfaces.HistoryEntry{
		Completed: env.Status.Completed,
		StatusStr: env.Status.StatusStr,
		Outputs:   make(map[string][]interfaces.HistoryImage, len(env.Outputs)),
	}
	for nodeID, out := range env.Outputs {
		entry.Outputs[nodeID] = out.Images
	}
	return entry, nil
}

// FetchImage retrieves raw image bytes from the renderer's file store.
func (c *Client) FetchImage(ctx context.Context, filename, subfolder, typ string) ([]byte, error) {
	params := url.Values{}
	params.Set("filename", filename)
	params.Set("subfolder", subfolder)
	params.Set("type", typ)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/view?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch_image request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Class: ClassUnreachable, Endpoint: "/view", Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Class: ClassProtocol, Endpoint: "/view", Status: resp.StatusCode, Body: string(body)}
	}
	return io.ReadAll(resp.Body)
}

// UploadImage multipart-uploads bytes under filename, overwriting any
// existing file of the same name. The returned Name may differ from the
// requested filename and is what subsequent graph injection must use.
func (c *Client) UploadImage(ctx context.Context, data []byte, filename string) (*interfaces.UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("creating multipart field: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("writing multipart body: %w", err)
	}
	if err := writer.WriteField("overwrite", "true"); err != nil {
		return nil, fmt.Errorf("writing overwrite field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &buf)
	if err != nil {
		return nil, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Class: ClassUnreachable, Endpoint: "/upload/image", Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Class: ClassProtocol, Endpoint: "/upload/image", Status: resp.StatusCode, Body: string(respBody)}
	}

	var result interfaces.UploadResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &APIError{Class: ClassShape, Endpoint: "/upload/image", Body: err.Error()}
	}
	return &result, nil
}

// AdapterHash reads an adapter file's embedded content hash, if the
// renderer's optional metadata endpoint is present. ok=false means the
// endpoint reported no usable hash field, not a transport error.
func (c *Client) AdapterHash(ctx context.Context, filename string) (string, bool, error) {
	params := url.Values{}
	params.Set("filename", filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/view_metadata/loras?"+params.Encode(), nil)
	if err != nil {
		return "", false, fmt.Errorf("building adapter hash request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, &APIError{Class: ClassUnreachable, Endpoint: "/view_metadata/loras", Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", false, &APIError{Class: ClassProtocol, Endpoint: "/view_metadata/loras", Status: resp.StatusCode, Body: string(body)}
	}

	var fields map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return "", false, &APIError{Class: ClassShape, Endpoint: "/view_metadata/loras", Body: err.Error()}
	}

	for _, key := range []string{"sha256", "sshs_model_hash", "modelspec.hash.sha256"} {
		if v, ok := fields[key].(string); ok && v != "" {
			return v, true, nil
		}
	}
	return "", false, nil
}

// AdapterTriggerWordsLocal best-effort queries an optional renderer-side
// plugin for an adapter's trigger words.
func (c *Client) AdapterTriggerWordsLocal(ctx context.Context, filename string) ([]string, bool, error) {
	params := url.Values{}
	params.Set("name", filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/lm/loras/get-trigger-words?"+params.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("building local trigger words request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, &APIError{Class: ClassUnreachable, Endpoint: "/api/lm/loras/get-trigger-words", Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, false, &APIError{Class: ClassProtocol, Endpoint: "/api/lm/loras/get-trigger-words", Status: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		Success      bool     `json:"success"`
		TriggerWords []string `json:"trigger_words"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, &APIError{Class: ClassShape, Endpoint: "/api/lm/loras/get-trigger-words", Body: err.Error()}
	}
	if !parsed.Success {
		return nil, false, nil
	}
	return splitTriggerWords(parsed.TriggerWords), true, nil
}

func (c *Client) getJSON(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request to %s: %w", path, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Class: ClassUnreachable, Endpoint: path, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Class: ClassProtocol, Endpoint: path, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &APIError{Class: ClassShape, Endpoint: path, Body: err.Error()}
	}
	return nil
}
