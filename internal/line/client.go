// Package line provides a minimal LINE Messaging API client and webhook
// payload handling: enough to receive text messages and reply with text.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.line.me/v2/bot"

// Client calls the LINE Messaging API.
type Client struct {
	accessToken string
	apiBase     string
	httpClient  *http.Client
}

// NewClient creates a LINE client with the given channel access token.
func NewClient(accessToken string) (*Client, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("channel access token cannot be empty")
	}
	return &Client{
		accessToken: accessToken,
		apiBase:     defaultAPIBase,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// NewClientWithBase creates a client against a non-default API base URL,
// used by tests.
func NewClientWithBase(accessToken, apiBase string) (*Client, error) {
	c, err := NewClient(accessToken)
	if err != nil {
		return nil, err
	}
	c.apiBase = apiBase
	return c, nil
}

// ReplyText sends a single text message in response to a webhook event.
// Reply tokens are single-use and expire shortly after delivery.
func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	if replyToken == "" {
		return &LineError{Op: "reply", Err: fmt.Errorf("empty reply token")}
	}
	if text == "" {
		return &LineError{Op: "reply", Err: fmt.Errorf("empty message text")}
	}

	payload := replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	}

	if err := c.post(ctx, c.apiBase+"/message/reply", payload); err != nil {
		return &LineError{Op: "reply", Err: err}
	}
	return nil
}

// post sends a JSON POST request to the Messaging API.
func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
