// Package llm adapts hosted language and image models to the assist
// generation ports: OpenAI through go-openai, Anthropic over its REST API,
// plus a rate limiter and a diagram generator usable on top of either.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/aretw0/marginalia/pkg/assist"
)

const (
	// DefaultOpenAIModel is used when neither the request nor OPENAI_MODEL names one.
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultMaxTokens bounds a completion when the request leaves it unset.
	DefaultMaxTokens = 2048
)

// ErrEmptyCompletion is returned when a service answers without text.
var ErrEmptyCompletion = errors.New("model returned no content")

// Option configures an adapter.
type Option func(*options)

type options struct {
	baseURL    string
	model      string
	imageModel string
	logger     *slog.Logger
}

// WithBaseURL points the client at another endpoint (proxies, tests).
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithImageModel sets the image model of the OpenAI adapter.
func WithImageModel(model string) Option {
	return func(o *options) { o.imageModel = model }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(defaultModel string, opts []Option) options {
	o := options{
		model:      defaultModel,
		imageModel: openai.CreateImageModelDallE3,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// OpenAI implements assist.Generator with chat completions and
// assist.ImageGenerator with image generation.
type OpenAI struct {
	client *openai.Client
	opts   options
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(apiKey string, opts ...Option) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is empty")
	}
	o := buildOptions(DefaultOpenAIModel, opts)
	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(config), opts: o}, nil
}

// Model returns the default model.
func (c *OpenAI) Model() string { return c.opts.model }

// Generate implements assist.Generator.
func (c *OpenAI) Generate(ctx context.Context, req assist.Request) (assist.Response, error) {
	model := req.Model
	if model == "" {
		model = c.opts.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	chat := openai.ChatCompletionRequest{
		Model:               model,
		MaxCompletionTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt()},
		},
	}
	if req.Instruction != "" {
		chat.Messages = append([]openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Instruction},
		}, chat.Messages...)
	}

	c.opts.logger.Debug("generating text via openai", "model", model, "action", req.Action.String())
	resp, err := c.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return assist.Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return assist.Response{}, fmt.Errorf("openai: %w", ErrEmptyCompletion)
	}
	c.opts.logger.Debug("openai response", "finish_reason", resp.Choices[0].FinishReason)
	return assist.Response{Text: resp.Choices[0].Message.Content}, nil
}

// imagePromptContextRunes bounds the document context woven into an image prompt.
const imagePromptContextRunes = 500

// GenerateImage implements assist.ImageGenerator for assist.ImageKindImage.
// The image comes back as a data URL so documents stay self-contained.
func (c *OpenAI) GenerateImage(ctx context.Context, req assist.ImageRequest) (assist.ImageResult, error) {
	if req.Kind != "" && req.Kind != assist.ImageKindImage {
		return assist.ImageResult{}, fmt.Errorf("openai images: unsupported kind %q", req.Kind)
	}
	prompt := fmt.Sprintf(
		"Create a small, clean inline illustration for an article. Style: minimal, modern, slightly whimsical. Context from the document: %q. Image prompt: %s",
		head(req.ContextText, imagePromptContextRunes), req.Prompt)

	c.opts.logger.Debug("generating image via openai", "model", c.opts.imageModel)
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.opts.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return assist.ImageResult{}, fmt.Errorf("openai image: %w", err)
	}
	if len(resp.Data) == 0 {
		return assist.ImageResult{}, fmt.Errorf("openai image: %w", ErrEmptyCompletion)
	}
	if b64 := resp.Data[0].B64JSON; b64 != "" {
		return assist.ImageResult{URL: "data:image/png;base64," + b64}, nil
	}
	if resp.Data[0].URL != "" {
		return assist.ImageResult{URL: resp.Data[0].URL}, nil
	}
	return assist.ImageResult{}, fmt.Errorf("openai image: %w", ErrEmptyCompletion)
}

// head returns the first n runes of s.
func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	_ assist.Generator      = (*OpenAI)(nil)
	_ assist.ImageGenerator = (*OpenAI)(nil)
)
