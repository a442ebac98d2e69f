package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/harrison/coordinator/internal/models"
)

// DefaultMaxAttempts is how many times a webhook call is tried before giving up.
const DefaultMaxAttempts = 3

// maxErrorBody bounds how much of a failed response body is quoted in errors.
const maxErrorBody = 512

// HTTPInvoker POSTs each AgentTaskRequest as JSON to an agent webhook and
// decodes the AgentResult from the response body. Transport errors, 429 and
// 5xx responses are retried with exponential backoff; other non-2xx
// responses fail immediately. Thread-safe for concurrent use.
type HTTPInvoker struct {
	// URL is the agent webhook endpoint.
	URL string

	// Headers are added to every request (e.g. Authorization).
	Headers map[string]string

	// Timeout bounds one invocation including retries. 0 = no timeout.
	Timeout time.Duration

	// MaxAttempts caps delivery attempts. Defaults to DefaultMaxAttempts.
	MaxAttempts uint

	// Client defaults to a plain http.Client.
	Client *http.Client

	// newBackOff is overridden in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

// NewHTTPInvoker creates an HTTPInvoker for url.
func NewHTTPInvoker(url string, headers map[string]string, timeout time.Duration) *HTTPInvoker {
	return &HTTPInvoker{
		URL:         url,
		Headers:     headers,
		Timeout:     timeout,
		MaxAttempts: DefaultMaxAttempts,
		Client:      &http.Client{},
	}
}

// StatusError is returned for non-2xx webhook responses.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("agent webhook returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Invoke implements executor.AgentInvoker.
func (h *HTTPInvoker) Invoke(ctx context.Context, req models.AgentTaskRequest) (models.AgentResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.AgentResult{}, fmt.Errorf("encode request for %s: %w", req.AgentType, err)
	}

	ctx, cancel := withTimeout(ctx, h.Timeout)
	defer cancel()

	attempts := h.MaxAttempts
	if attempts == 0 {
		attempts = DefaultMaxAttempts
	}
	b := backoff.BackOff(backoff.NewExponentialBackOff())
	if h.newBackOff != nil {
		b = h.newBackOff()
	}

	result, err := backoff.Retry(ctx, func() (models.AgentResult, error) {
		return h.post(ctx, body)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(attempts))
	if err != nil {
		return models.AgentResult{}, fmt.Errorf("invoke %s at %s: %w", req.AgentType, h.URL, err)
	}
	return result, nil
}

func (h *HTTPInvoker) post(ctx context.Context, body []byte) (models.AgentResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return models.AgentResult{}, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range h.Headers {
		httpReq.Header.Set(k, v)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return models.AgentResult{}, backoff.Permanent(ctx.Err())
		}
		return models.AgentResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
		if statusErr.Retryable() {
			return models.AgentResult{}, statusErr
		}
		return models.AgentResult{}, backoff.Permanent(statusErr)
	}

	var result models.AgentResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.AgentResult{}, backoff.Permanent(fmt.Errorf("decode agent result: %w", err))
	}
	return result, nil
}
