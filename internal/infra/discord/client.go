// Package discord is a minimal Discord REST client covering exactly the
// message operations the moderation pipeline performs.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/guildwatch/bot/internal/biz/repo"
)

const defaultBaseURL = "https://discord.com/api/v10"

// Client talks to the Discord REST API with a bot token.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Discord client. Empty baseURL selects the production
// API; nil httpClient selects a default with a 10s timeout.
func NewClient(token, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{token: token, baseURL: baseURL, http: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return res, nil
}

// FetchMessage returns a handle to a live message. A message that no
// longer exists returns nil without error.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (repo.LiveMessage, error) {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	res, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return &liveMessage{client: c, channelID: channelID, messageID: messageID}, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("fetch message: unexpected status %d", res.StatusCode)
	}
}

// liveMessage operates on one existing message.
type liveMessage struct {
	client    *Client
	channelID string
	messageID string
}

func (m *liveMessage) React(ctx context.Context, emoji string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		m.channelID, m.messageID, url.PathEscape(emoji))
	res, err := m.client.do(ctx, http.MethodPut, path, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("react: unexpected status %d", res.StatusCode)
	}
	return nil
}

func (m *liveMessage) Reply(ctx context.Context, content string) error {
	path := fmt.Sprintf("/channels/%s/messages", m.channelID)
	body := map[string]any{
		"content": content,
		"message_reference": map[string]string{
			"message_id": m.messageID,
		},
	}
	res, err := m.client.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("reply: unexpected status %d", res.StatusCode)
	}
	return nil
}

func (m *liveMessage) Delete(ctx context.Context) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", m.channelID, m.messageID)
	res, err := m.client.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete: unexpected status %d", res.StatusCode)
	}
	return nil
}
