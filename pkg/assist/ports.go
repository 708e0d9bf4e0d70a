// Package assist coordinates calls to text and image generation services
// with a document that keeps changing while they run. Every result is
// checked against the current document before it is applied; stale results
// are dropped.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrUnknownAction is returned for action names outside the catalog.
	ErrUnknownAction = errors.New("unknown action")
	// ErrEmptySelection is returned when a selection action runs without one.
	ErrEmptySelection = errors.New("selection is empty")
	// ErrNeedMoreContent is returned when the document is too short to help with.
	ErrNeedMoreContent = errors.New("need more content to help")
	// ErrWrongMode is returned when an action is used through the wrong entry point.
	ErrWrongMode = errors.New("action not supported here")
	// ErrEmptyMessage is returned when a chat message is blank.
	ErrEmptyMessage = errors.New("message is empty")
)

// Request is a single generation call.
type Request struct {
	Action      Action
	Instruction string
	// PrimaryLabel introduces PrimaryText in the prompt.
	PrimaryLabel string
	PrimaryText  string
	ContextText  string
	Model        string
	MaxTokens    int
}

// Prompt renders the user message sent alongside Instruction.
func (r Request) Prompt() string {
	var b strings.Builder
	if r.ContextText != "" {
		b.WriteString("Document context:\n")
		b.WriteString(r.ContextText)
		b.WriteString("\n\n")
	}
	if r.PrimaryLabel != "" {
		b.WriteString(r.PrimaryLabel)
		b.WriteString(":\n")
	}
	b.WriteString(r.PrimaryText)
	return b.String()
}

// Response carries the generated text.
type Response struct {
	Text string
}

// Generator produces text.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// ImageKind selects what an image service should produce.
type ImageKind string

const (
	ImageKindImage   ImageKind = "image"
	ImageKindDiagram ImageKind = "diagram"
)

// ImageRequest asks for an image or a diagram.
type ImageRequest struct {
	Prompt      string
	ContextText string
	Kind        ImageKind
}

// ImageResult is either a URL or a diagram shape list.
type ImageResult struct {
	URL    string
	Shapes json.RawMessage
}

// ImageGenerator produces images and diagrams.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error)
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// head returns the first n runes of s.
func head(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
