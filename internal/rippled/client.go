package rippled

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a JSON-RPC client for a rippled server with retry on 429.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a new rippled JSON-RPC client.
func NewClient(rpcURL string, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// post sends a request body with retry on 429.
func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", c.rpcURL, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, lastErr
		}

		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, c.rpcURL, string(body))
	}

	return nil, lastErr
}

// call invokes a JSON-RPC method and unmarshals its result into dest.
func (c *Client) call(ctx context.Context, method string, params any, dest any) error {
	payload, err := json.Marshal(rpcRequest{Method: method, Params: []any{params}})
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	body, err := c.post(ctx, payload)
	if err != nil {
		return err
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", method, err)
	}

	var status RPCError
	if err := json.Unmarshal(envelope.Result, &status); err != nil {
		return fmt.Errorf("parsing %s result: %w", method, err)
	}
	if status.Status == "error" {
		status.Method = method
		return &status
	}

	if err := json.Unmarshal(envelope.Result, dest); err != nil {
		return fmt.Errorf("parsing %s result: %w", method, err)
	}
	return nil
}
