// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// chatClient calls an OpenAI-compatible chat completions endpoint.
type chatClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// apiError is a non-2xx response from the chat endpoint. Rate limiting and
// server-side failures are transient; other statuses are not retried.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("chat API returned HTTP %d: %s", e.status, e.body)
}

func (e *apiError) transient() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// complete sends one system+user exchange and returns the extracted
// response text.
func (c *chatClient) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	return extractResponseText(payload), nil
}

// extractResponseText pulls the digest text out of a provider-shaped
// payload. It prefers the first choice's message content when that is a
// plain string, concatenates text fields when the content is a list of
// structured segments, falls back to known alternate keys, and stringifies
// anything else.
func extractResponseText(payload any) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		if payload == nil {
			return ""
		}
		return fmt.Sprintf("%v", payload)
	}

	if choices, ok := obj["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				switch content := message["content"].(type) {
				case string:
					return content
				case []any:
					var b strings.Builder
					for _, part := range content {
						if segment, ok := part.(map[string]any); ok {
							if text, ok := segment["text"].(string); ok {
								b.WriteString(text)
							}
						}
					}
					return b.String()
				}
			}
		}
	}

	for _, key := range []string{"text", "summary", "output"} {
		if value, ok := obj[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
