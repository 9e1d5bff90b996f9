package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const contentTypeCBOR = "application/cbor"

// ErrNotAuthenticated is returned by calls that need a token before Authenticate succeeded
var ErrNotAuthenticated = errors.New("client not authenticated - call Authenticate() first")

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status of an APIError in err's chain, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client provides HTTP client for a chat node's API
type Client struct {
	config     Config
	httpClient *http.Client
	token      string
	baseURL    *url.URL
}

// NewClient creates a new HTTP client
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	// Validate required config
	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("ClientID is required")
	}

	// Parse base URL
	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    baseURL,
	}, nil
}

// Authenticate logs in with the configured client ID and stores the token
func (c *Client) Authenticate(ctx context.Context) error {
	authReq := map[string]string{
		"clientId": c.config.ClientID,
	}

	var authResp AuthResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", authReq, &authResp, false)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	c.token = authResp.Token
	return nil
}

// SendMessage broadcasts text to every peer of the node
func (c *Client) SendMessage(ctx context.Context, text string) (*SendResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp SendResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/messages", SendRequest{Text: text}, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return &resp, nil
}

// Peers returns the node's endpoint, state and peer set
func (c *Client) Peers(ctx context.Context) (*PeersResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp PeersResponse
	err := c.doRequest(ctx, http.MethodGet, "/api/v1/peers", nil, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list peers: %w", err)
	}

	return &resp, nil
}

// Connect asks the node to join the chat that endpoint belongs to
func (c *Client) Connect(ctx context.Context, endpoint string) (*ConnectResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp ConnectResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/peers/connect", ConnectRequest{Endpoint: endpoint}, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &resp, nil
}

// History reads recorded events starting at offset; a negative offset starts at the oldest
func (c *Client) History(ctx context.Context, offset int64, limit int) (*HistoryResponse, error) {
	return c.history(ctx, offset, limit, false)
}

// HistoryCBOR is History using the CBOR encoding
func (c *Client) HistoryCBOR(ctx context.Context, offset int64, limit int) (*HistoryResponse, error) {
	return c.history(ctx, offset, limit, true)
}

func (c *Client) history(ctx context.Context, offset int64, limit int, useCBOR bool) (*HistoryResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	queryParams := url.Values{}
	if offset >= 0 {
		queryParams.Set("offset", strconv.FormatInt(offset, 10))
	}
	if limit > 0 {
		queryParams.Set("limit", strconv.Itoa(limit))
	}

	var resp HistoryResponse
	var err error
	if useCBOR {
		err = c.doCBORRequest(ctx, "/api/v1/history", queryParams, &resp)
	} else {
		err = c.doRequestWithQuery(ctx, http.MethodGet, "/api/v1/history", queryParams, nil, &resp, true)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return &resp, nil
}

// GetHealth returns the health status of the node. An unhealthy node answers
// 503 with a body, which is returned alongside the error.
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp, false)
	if err != nil {
		if StatusCode(err) == http.StatusServiceUnavailable {
			return &resp, fmt.Errorf("node unhealthy: %w", err)
		}
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}

	return &resp, nil
}

// AdminGetStats returns node statistics (admin only)
func (c *Client) AdminGetStats(ctx context.Context) (*AdminStatsResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp AdminStatsResponse
	err := c.doRequest(ctx, http.MethodGet, "/api/v1/admin/stats", nil, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return &resp, nil
}

// AdminListSubscriptions returns the node's live stream subscriptions (admin only)
func (c *Client) AdminListSubscriptions(ctx context.Context) (*AdminSubscriptionsResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp AdminSubscriptionsResponse
	err := c.doRequest(ctx, http.MethodGet, "/api/v1/admin/subscriptions", nil, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return &resp, nil
}

// doRequestWithQuery performs an HTTP request with query parameters and optional authentication
func (c *Client) doRequestWithQuery(ctx context.Context, method, path string, queryParams url.Values, reqBody interface{}, respBody interface{}, requireAuth bool) error {
	var jsonBody []byte
	if reqBody != nil {
		var err error
		jsonBody, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	build := func() (*http.Request, error) {
		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.resolve(path, queryParams), bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if requireAuth && c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return req, nil
	}

	bodyBytes, err := c.execute(ctx, method, build)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && respBody != nil {
			// error bodies with the response shape (health) are still decoded
			_ = json.Unmarshal(bodyBytes, respBody)
		}
		return err
	}

	// Parse successful response
	if respBody != nil {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request with optional authentication
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody interface{}, respBody interface{}, requireAuth bool) error {
	return c.doRequestWithQuery(ctx, method, path, nil, reqBody, respBody, requireAuth)
}

// doCBORRequest performs an authenticated GET that negotiates a CBOR body
func (c *Client) doCBORRequest(ctx context.Context, path string, queryParams url.Values, respBody interface{}) error {
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path, queryParams), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", contentTypeCBOR)
		req.Header.Set("Authorization", "Bearer "+c.token)
		return req, nil
	}

	bodyBytes, err := c.execute(ctx, http.MethodGet, build)
	if err != nil {
		return err
	}
	if err := cbor.Unmarshal(bodyBytes, respBody); err != nil {
		return fmt.Errorf("failed to parse CBOR response: %w", err)
	}
	return nil
}

// execute runs a request, retrying GETs that fail before a response arrives.
// The body is returned for error responses too.
func (c *Client) execute(ctx context.Context, method string, build func() (*http.Request, error)) ([]byte, error) {
	attempts := 1
	if method == http.MethodGet {
		attempts += c.config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 400 {
			return bodyBytes, apiError(resp.StatusCode, bodyBytes)
		}
		return bodyBytes, nil
	}

	return nil, lastErr
}

func (c *Client) resolve(path string, queryParams url.Values) string {
	u := &url.URL{Path: path}
	if len(queryParams) > 0 {
		u.RawQuery = queryParams.Encode()
	}
	return c.baseURL.ResolveReference(u).String()
}

func apiError(statusCode int, body []byte) *APIError {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		return &APIError{StatusCode: statusCode, Message: string(bytes.TrimSpace(body))}
	}
	return &APIError{StatusCode: statusCode, Message: errResp.Message}
}

// IsAuthenticated returns whether the client has a valid token
func (c *Client) IsAuthenticated() bool {
	return c.token != ""
}

// GetToken returns the current authentication token
func (c *Client) GetToken() string {
	return c.token
}

// SetToken sets the authentication token (useful for testing or token reuse)
func (c *Client) SetToken(token string) {
	c.token = token
}
