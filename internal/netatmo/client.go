package netatmo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// errorCodeTokenExpired is the provider error code for an expired access token
	errorCodeTokenExpired = 3

	pathHomesData  = "homesdata"
	pathHomeStatus = "homestatus"
	pathSetState   = "setstate"
)

// Refresher obtains a new access token
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CallObserver receives the outcome of every gateway call, e.g. for metrics
type CallObserver interface {
	ObserveAPICall(endpoint, outcome string)
}

// Call outcomes, also used as metric labels
const (
	OutcomeOK          = "ok"
	OutcomeExpired     = "expired"
	OutcomeServerError = "server_error"
	OutcomeFailed      = "failed"
	OutcomeTransport   = "transport"
)

// ClientConfig contains the resource API settings
type ClientConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

// Client is the API gateway for Netatmo Connect resource endpoints
type Client struct {
	baseURL    string
	store      TokenStore
	refresher  Refresher
	httpClient *http.Client
	observer   CallObserver
	logger     *slog.Logger
}

// ClientOption customises a Client
type ClientOption func(*Client)

// WithCallObserver registers an observer for call outcomes
func WithCallObserver(observer CallObserver) ClientOption {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithHTTPClient replaces the HTTP client used for resource calls
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates an API gateway
func NewClient(config ClientConfig, store TokenStore, refresher Refresher, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 30 * time.Second
	}

	c := &Client{
		baseURL:   strings.TrimSuffix(config.BaseURL, "/") + "/",
		store:     store,
		refresher: refresher,
		httpClient: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		logger: logger.With("component", "gateway"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Call performs an authenticated API call. A JSON body turns the call into
// a POST. An expired access token is refreshed once and the call retried;
// a 5xx answer is returned as data so the caller can retry on its own schedule.
func (c *Client) Call(ctx context.Context, endpoint string, body any) ([]byte, error) {
	return c.call(ctx, endpoint, body, false)
}

func (c *Client) call(ctx context.Context, endpoint string, body any, secondAttempt bool) ([]byte, error) {
	token := c.store.Current()
	if token == nil {
		return nil, ErrNoToken
	}

	status, respBody, err := c.do(ctx, endpoint, body, token.AccessToken)
	if err != nil {
		c.observe(endpoint, OutcomeTransport)
		c.logger.Error("Error while performing API call", "url", endpoint, "error", err)
		return nil, fmt.Errorf("%w: API call %s: %w", ErrTransport, endpoint, err)
	}

	outcome := classifyResponse(status, respBody, secondAttempt)
	c.observe(endpoint, outcome)

	switch outcome {
	case OutcomeOK:
		return respBody, nil

	case OutcomeExpired:
		c.logger.Warn("Access token expired", "url", endpoint)
		if err := c.refresher.Refresh(ctx); err != nil {
			return nil, &TokenError{Kind: TokenExpired, StatusCode: status, Body: string(respBody), Err: err}
		}
		c.logger.Info("Token successfully refreshed. Repeating last request", "url", endpoint)
		return c.call(ctx, endpoint, body, true)

	case OutcomeServerError:
		c.logger.Warn("Possible server error: failing silently",
			"url", endpoint,
			"status", status,
			"body", string(respBody))
		return respBody, nil

	default:
		apiErr := &APIError{
			URL:        endpoint,
			StatusCode: status,
			ErrorCode:  providerErrorCode(respBody),
			Body:       string(respBody),
		}
		c.logger.Error("HTTP error while performing API call",
			"url", endpoint,
			"status", status,
			"second_attempt", secondAttempt,
			"body", string(respBody))
		return nil, apiErr
	}
}

func (c *Client) do(ctx context.Context, endpoint string, body any, accessToken string) (int, []byte, error) {
	method := http.MethodGet
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		method = http.MethodPost
		reader = bytes.NewReader(payload)
		c.logger.Debug("Sending request", "method", method, "url", endpoint, "body", string(payload))
	} else {
		c.logger.Debug("Sending request", "method", method, "url", endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

func (c *Client) observe(endpoint, outcome string) {
	if c.observer == nil {
		return
	}
	name := endpoint
	if u, err := url.Parse(endpoint); err == nil {
		name = u.Path[strings.LastIndex(u.Path, "/")+1:]
	}
	c.observer.ObserveAPICall(name, outcome)
}

// classifyResponse decides what the gateway does with an HTTP answer
func classifyResponse(status int, body []byte, secondAttempt bool) string {
	switch {
	case status >= 200 && status <= 299:
		return OutcomeOK
	case secondAttempt:
		return OutcomeFailed
	case status == http.StatusForbidden && providerErrorCode(body) == errorCodeTokenExpired:
		return OutcomeExpired
	case status >= 500 && status <= 599:
		return OutcomeServerError
	default:
		return OutcomeFailed
	}
}

// providerErrorCode extracts error.code from a Netatmo error body
func providerErrorCode(body []byte) int {
	var doc struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0
	}
	return doc.Error.Code
}

// HomesData returns information about every home, room and module
func (c *Client) HomesData(ctx context.Context) ([]byte, error) {
	return c.Call(ctx, c.baseURL+pathHomesData, nil)
}

// HomeStatus returns the current status of a home
func (c *Client) HomeStatus(ctx context.Context, homeID string) ([]byte, error) {
	return c.Call(ctx, c.baseURL+pathHomeStatus+"?home_id="+url.QueryEscape(homeID), nil)
}

// SetRoomState applies thermostat parameters to a single room
func (c *Client) SetRoomState(ctx context.Context, homeID, roomID string, params map[string]any) error {
	_, err := c.Call(ctx, c.baseURL+pathSetState, RoomRequest(homeID, roomID, params))
	return err
}

// RoomRequest wraps room parameters in the structure expected by /setstate
func RoomRequest(homeID, roomID string, params map[string]any) map[string]any {
	room := make(map[string]any, len(params)+1)
	for k, v := range params {
		room[k] = v
	}
	room["id"] = roomID

	return map[string]any{
		"home": map[string]any{
			"id":    homeID,
			"rooms": []any{room},
		},
	}
}
