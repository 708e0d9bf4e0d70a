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

	"github.com/aretw0/marginalia/pkg/assist"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"

	// DefaultClaudeModel is used when neither the request nor CLAUDE_MODEL names one.
	DefaultClaudeModel = "claude-sonnet-4-5"
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Anthropic implements assist.Generator with the Messages API.
type Anthropic struct {
	httpClient *http.Client
	apiKey     string
	url        string
	opts       options
}

// NewAnthropic creates an Anthropic adapter.
func NewAnthropic(apiKey string, opts ...Option) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is empty")
	}
	o := buildOptions(DefaultClaudeModel, opts)
	url := anthropicBaseURL
	if o.baseURL != "" {
		url = o.baseURL
	}
	return &Anthropic{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		url:        url,
		opts:       o,
	}, nil
}

// Model returns the default model.
func (a *Anthropic) Model() string { return a.opts.model }

// Generate implements assist.Generator.
func (a *Anthropic) Generate(ctx context.Context, req assist.Request) (assist.Response, error) {
	payload := anthropicRequest{
		Model:     req.Model,
		System:    req.Instruction,
		MaxTokens: req.MaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt()}},
	}
	if payload.Model == "" {
		payload.Model = a.opts.model
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = DefaultMaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return assist.Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return assist.Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("content-type", "application/json")

	a.opts.logger.Debug("generating text via anthropic", "model", payload.Model, "action", req.Action.String())
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return assist.Response{}, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return assist.Response{}, fmt.Errorf("reading anthropic response: %w", err)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return assist.Response{}, fmt.Errorf("anthropic API returned status %d", resp.StatusCode)
		}
		return assist.Response{}, fmt.Errorf("failed to parse anthropic response: %w", err)
	}
	if apiResp.Error != nil {
		return assist.Response{}, fmt.Errorf("anthropic API error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return assist.Response{}, fmt.Errorf("anthropic API returned status %d", resp.StatusCode)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return assist.Response{}, fmt.Errorf("anthropic: %w", ErrEmptyCompletion)
	}
	return assist.Response{Text: text.String()}, nil
}

var _ assist.Generator = (*Anthropic)(nil)
