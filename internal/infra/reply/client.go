package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-terminal/internal/domain"
)

var ErrEmptyReply = errors.New("empty reply from assistant endpoint")

// Client performs one request-reply exchange per call. It never retries:
// every failure is surfaced to the caller.
type Client struct {
	url        string
	authToken  string
	httpClient *http.Client
}

func NewClient(url, authToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        url,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type request struct {
	Text     string           `json:"text"`
	Messages []domain.Message `json:"messages"`
}

type response struct {
	Reply string `json:"reply"`
}

func (c *Client) Reply(ctx context.Context, text string, history []domain.Message) (string, error) {
	if history == nil {
		history = []domain.Message{}
	}

	bodyBytes, err := json.Marshal(request{Text: text, Messages: history})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("assistant endpoint error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	reply := strings.TrimSpace(result.Reply)
	if reply == "" {
		return "", ErrEmptyReply
	}

	return reply, nil
}
