package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"transcode-session/pkg/models"
)

type OrchestratorClient struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
}

// Option tweaks the retry behaviour of the client.
type Option func(*retryablehttp.Client)

// WithRetry overrides the retry budget and backoff bounds.
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryMax = max
		c.RetryWaitMin = waitMin
		c.RetryWaitMax = waitMax
	}
}

// NewOrchestratorClient creates an HTTP client with retries
func NewOrchestratorClient(baseURL, sessionID string, opts ...Option) *OrchestratorClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.HTTPClient.Timeout = 5 * time.Second
	retryClient.Logger = nil // Silence default debug logger
	for _, opt := range opts {
		opt(retryClient)
	}

	return &OrchestratorClient{
		baseURL:    baseURL,
		sessionID:  sessionID,
		httpClient: retryClient.StandardClient(),
	}
}

// doRequest is the core HTTP request handler with error interception
func (c *OrchestratorClient) doRequest(ctx context.Context, method, path string, payload any) error {
	endpoint := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", c.sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// 404 - orchestrator does not know this session
	if resp.StatusCode == http.StatusNotFound {
		return &OrchestratorStateError{StatusCode: resp.StatusCode}
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("API returned error status: %d", resp.StatusCode)
	}

	return nil
}

// OrchestratorStateError indicates the orchestrator does not track the session
type OrchestratorStateError struct {
	StatusCode int
}

func (e *OrchestratorStateError) Error() string {
	return fmt.Sprintf("orchestrator state error: status %d", e.StatusCode)
}

// IsStateError reports whether err is an *OrchestratorStateError.
func IsStateError(err error) bool {
	var stateErr *OrchestratorStateError
	return errors.As(err, &stateErr)
}

// PostEvent mirrors one outbound protocol event.
func (c *OrchestratorClient) PostEvent(ctx context.Context, payload models.SessionEventPayload) error {
	path := fmt.Sprintf("/api/v1/sessions/%s/events", url.PathEscape(c.sessionID))
	if err := c.doRequest(ctx, http.MethodPost, path, payload); err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	return nil
}

// Finalize reports the session result.
func (c *OrchestratorClient) Finalize(ctx context.Context, payload models.SessionResultPayload) error {
	path := fmt.Sprintf("/api/v1/sessions/%s/finalize", url.PathEscape(c.sessionID))
	if err := c.doRequest(ctx, http.MethodPost, path, payload); err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	return nil
}
