// Package llm provides a client for OpenAI-compatible chat completion APIs.
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

	"careercoach-go/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

// Message roles accepted in a completion history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrInvalidInput is returned when the history cannot be sent as-is.
	ErrInvalidInput = errors.New("llm: invalid completion input")
	// ErrMalformedOutput is returned in strict mode when the reply is not a JSON object.
	ErrMalformedOutput = errors.New("llm: completion is not a JSON object")
)

// ProviderError reports a failure on the provider side: transport, non-2xx status
// or an unusable response body.
type ProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm provider returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("llm provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Message is one entry of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Attachment is an image handed to the model together with the last user message.
// URL may be an http(s) URL or a data URL.
type Attachment struct {
	URL string
}

// Client defines the interface for an LLM client.
type Client interface {
	// Complete sends systemPrompt followed by history and returns the model reply.
	// With strict set the reply must be a JSON object; otherwise it is returned verbatim.
	Complete(ctx context.Context, history []Message, systemPrompt string, attachment *Attachment, strict bool) (string, error)
}

type completionClient struct {
	cfg       config.LLMConfig
	client    *http.Client
	semaphore *semaphore.Weighted
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg config.LLMConfig) Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	workers := cfg.MaxConcurrency
	if workers <= 0 {
		workers = 10
	}
	return &completionClient{
		cfg:       cfg,
		client:    &http.Client{Timeout: timeout},
		semaphore: semaphore.NewWeighted(int64(workers)),
	}
}

type imageURL struct {
	URL string `json:"url"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *completionClient) Complete(ctx context.Context, history []Message, systemPrompt string, attachment *Attachment, strict bool) (string, error) {
	ctx, span := otel.Tracer("llm/Complete").Start(ctx, "Complete")
	defer span.End()
	span.SetAttributes(
		attribute.Int("history.length", len(history)),
		attribute.Bool("strict", strict),
		attribute.Bool("attachment", attachment != nil),
	)

	messages, err := buildMessages(history, systemPrompt, attachment)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if err := c.semaphore.Acquire(ctx, 1); err != nil {
		return "", &ProviderError{Err: fmt.Errorf("failed to acquire semaphore: %w", err)}
	}
	defer c.semaphore.Release(1)

	reply, err := c.send(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}

	if !strict {
		return reply, nil
	}
	cleaned := StripCodeFence(reply)
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return cleaned, nil
}

func (c *completionClient) send(ctx context.Context, messages []wireMessage) (string, error) {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   false,
	}
	// 从全局配置注入（若非零值）
	if c.cfg.Generation.Temperature != 0 {
		t := c.cfg.Generation.Temperature
		reqBody.Temperature = &t
	}
	if c.cfg.Generation.TopP != 0 {
		p := c.cfg.Generation.TopP
		reqBody.TopP = &p
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := c.cfg.Generation.MaxTokens
		reqBody.MaxTokens = &m
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &ProviderError{Err: fmt.Errorf("failed to call chat api: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Err: fmt.Errorf("failed to decode chat response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Err: errors.New("chat response has no choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

// buildMessages prepends the system prompt and merges the attachment into the
// final entry when, and only when, that entry is a user message.
func buildMessages(history []Message, systemPrompt string, attachment *Attachment) ([]wireMessage, error) {
	if history == nil {
		return nil, fmt.Errorf("%w: history is nil", ErrInvalidInput)
	}
	out := make([]wireMessage, 0, len(history)+1)
	out = append(out, wireMessage{Role: RoleSystem, Content: systemPrompt})
	for i, m := range history {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return nil, fmt.Errorf("%w: message %d has role %q", ErrInvalidInput, i, m.Role)
		}
		out = append(out, wireMessage{Role: m.Role, Content: m.Content})
	}

	if attachment == nil || attachment.URL == "" || len(history) == 0 {
		return out, nil
	}
	last := history[len(history)-1]
	if last.Role != RoleUser {
		return out, nil
	}
	out[len(out)-1].Content = []contentPart{
		{Type: "text", Text: last.Content},
		{Type: "image_url", ImageURL: &imageURL{URL: attachment.URL}},
	}
	return out, nil
}

// StripCodeFence removes a leading ``` or ```json fence line and a trailing ```
// fence, then trims surrounding whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
