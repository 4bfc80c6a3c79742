// Package classify calls the external spam classification service.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ClassifierError covers every way the classification call can fail: network
// or timeout errors, non-2xx responses, malformed JSON, or a response without
// a verdict field. Callers fail open on it.
type ClassifierError struct {
	Op  string
	Err error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier %s: %v", e.Op, e.Err)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// Client is an HTTP gateway to the spam classifier endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

type classifyRequest struct {
	Message string `json:"message"`
}

type classifyResponse struct {
	Response any `json:"response"`
}

// NewClient creates a classifier gateway with a bounded per-call timeout.
func NewClient(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Classify submits the message body and returns the spam verdict. The verdict
// is spam iff the response's "response" field, stringified, equals "true", so
// both the boolean true and the string "true" count.
func (c *Client) Classify(ctx context.Context, body string) (bool, error) {
	payload, err := json.Marshal(classifyRequest{Message: body})
	if err != nil {
		return false, &ClassifierError{Op: "marshal", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return false, &ClassifierError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &ClassifierError{Op: "call", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &ClassifierError{Op: "call", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, &ClassifierError{Op: "decode", Err: err}
	}
	if result.Response == nil {
		return false, &ClassifierError{Op: "decode", Err: fmt.Errorf("response field missing")}
	}

	verdict := fmt.Sprint(result.Response) == "true"
	c.logger.Debug("Classifier verdict",
		zap.Bool("spam", verdict),
		zap.Int("body_length", len(body)))
	return verdict, nil
}
