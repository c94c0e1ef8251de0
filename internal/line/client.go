package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"susu/bot/pkg/x/httpx"
)

// Client talks to the platform's Messaging API (reply + push).
type Client struct {
	apiBase     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(apiBase, accessToken string) (*Client, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	httpClient, err := httpx.NewClient(httpx.ClientOptions{
		Timeout:     15 * time.Second,
		UseEnvProxy: true,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}, nil
}

// Reply sends messages bound to a reply token. The platform accepts at
// most five messages per reply.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs ...Message) error {
	if strings.TrimSpace(replyToken) == "" {
		return fmt.Errorf("reply token is required")
	}
	if len(msgs) == 0 || len(msgs) > 5 {
		return fmt.Errorf("reply needs 1-5 messages, got %d", len(msgs))
	}
	return c.post(ctx, "/v2/bot/message/reply", map[string]any{
		"replyToken": replyToken,
		"messages":   msgs,
	})
}

// Push sends messages directly to a user, outside any reply window.
func (c *Client) Push(ctx context.Context, userID string, msgs ...Message) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if len(msgs) == 0 || len(msgs) > 5 {
		return fmt.Errorf("push needs 1-5 messages, got %d", len(msgs))
	}
	return c.post(ctx, "/v2/bot/message/push", map[string]any{
		"to":       userID,
		"messages": msgs,
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("messaging api %s failed: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
