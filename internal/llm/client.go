// Package llm talks to an OpenAI-compatible chat-completions endpoint.
package llm

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
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 800
	defaultTimeout   = 60 * time.Second
	maxErrorBodySize = 4 << 10
)

// ErrUnauthorized matches a *StatusError carrying HTTP 401.
var ErrUnauthorized = errors.New("unauthorized")

// ErrEmptyReply is returned when the endpoint answers without any choice.
var ErrEmptyReply = errors.New("empty reply")

// StatusError is returned for any non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Code == http.StatusUnauthorized
}

// Options configures a Client. Zero values for the endpoint, model, token
// limit and timeout fall back to defaults; the sampling parameters are sent
// as given, zero included.
type Options struct {
	BaseURL          string
	Model            string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	Timeout          time.Duration
}

// DefaultOptions returns the request parameters Nanny ships with.
func DefaultOptions() Options {
	return Options{
		BaseURL:          defaultBaseURL,
		Model:            defaultModel,
		MaxTokens:        defaultMaxTokens,
		Temperature:      0.7,
		TopP:             0.9,
		FrequencyPenalty: 0.5,
		Timeout:          defaultTimeout,
	}
}

// Client communicates with a chat-completions endpoint.
type Client struct {
	apiKey     string
	opts       Options
	httpClient *http.Client
}

// NewClient creates a client with the given API key.
func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		apiKey:     apiKey,
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.opts.Model
}

// Complete sends systemPrompt followed by messages and returns the first
// choice's content. It makes exactly one attempt.
func (c *Client) Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	msgs := make([]Message, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, messages...)

	body, err := json.Marshal(ChatRequest{
		Model:            c.opts.Model,
		Messages:         msgs,
		MaxTokens:        c.opts.MaxTokens,
		Temperature:      c.opts.Temperature,
		TopP:             c.opts.TopP,
		FrequencyPenalty: c.opts.FrequencyPenalty,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
