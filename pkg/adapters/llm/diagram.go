package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/marginalia/pkg/assist"
)

// ErrInvalidDiagram is returned when a model answer holds no shape list.
var ErrInvalidDiagram = errors.New("invalid diagram format")

const diagramContextRunes = 1500

const diagramInstruction = `You are a diagram generation assistant. Given a prompt and document context, generate a whiteboard diagram as JSON.

Output ONLY valid JSON in this exact format (no markdown, no explanation):
{"shapes": [{"type": "geo", "x": 0, "y": 0, "props": {"geo": "rectangle", "w": 200, "h": 80, "text": "Label", "color": "black", "fill": "none"}}]}

Shape types:
- geo: props geo (rectangle|ellipse|diamond|triangle|cloud), w, h, text, color, fill (none|solid|semi)
- arrow: props start {x,y}, end {x,y}, text, color
- text: props text, color, size (s|m|l|xl)

Colors: black, blue, green, red, orange, yellow, violet, grey, light-blue, light-green, light-red, light-violet

Position shapes with logical coordinates inside (0,0)-(600,400), 50-100 pixels apart. Flowcharts use rectangles for steps, diamonds for decisions and arrows between them.`

// Diagrams implements assist.ImageGenerator for assist.ImageKindDiagram on
// top of a text generator.
type Diagrams struct {
	gen   assist.Generator
	model string
}

// NewDiagrams creates a diagram generator. model may be empty.
func NewDiagrams(gen assist.Generator, model string) *Diagrams {
	return &Diagrams{gen: gen, model: model}
}

// GenerateImage implements assist.ImageGenerator.
func (d *Diagrams) GenerateImage(ctx context.Context, req assist.ImageRequest) (assist.ImageResult, error) {
	if req.Kind != "" && req.Kind != assist.ImageKindDiagram {
		return assist.ImageResult{}, fmt.Errorf("diagrams: unsupported kind %q", req.Kind)
	}
	primary := fmt.Sprintf("Create a diagram for: %q\n\nGenerate appropriate shapes for this content. Output only the JSON.", req.Prompt)
	resp, err := d.gen.Generate(ctx, assist.Request{
		Instruction:  diagramInstruction,
		PrimaryLabel: "Request",
		PrimaryText:  primary,
		ContextText:  head(req.ContextText, diagramContextRunes),
		Model:        d.model,
		MaxTokens:    4000,
	})
	if err != nil {
		return assist.ImageResult{}, err
	}
	shapes, err := ParseShapes(resp.Text)
	if err != nil {
		return assist.ImageResult{}, err
	}
	return assist.ImageResult{Shapes: shapes}, nil
}

// ParseShapes extracts the shape list from a model answer, tolerating code
// fences and prose around the JSON object.
func ParseShapes(raw string) (json.RawMessage, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, ErrInvalidDiagram
	}
	var payload struct {
		Shapes []json.RawMessage `json:"shapes"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDiagram, err)
	}
	var valid []json.RawMessage
	for _, s := range payload.Shapes {
		var shape struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(s, &shape) != nil {
			continue
		}
		switch shape.Type {
		case "geo", "arrow", "text":
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil, ErrInvalidDiagram
	}
	return json.Marshal(valid)
}

// Router dispatches image requests by kind.
type Router struct {
	Image   assist.ImageGenerator
	Diagram assist.ImageGenerator
}

// GenerateImage implements assist.ImageGenerator.
func (r Router) GenerateImage(ctx context.Context, req assist.ImageRequest) (assist.ImageResult, error) {
	var next assist.ImageGenerator
	switch req.Kind {
	case assist.ImageKindDiagram:
		next = r.Diagram
	default:
		next = r.Image
	}
	if next == nil {
		return assist.ImageResult{}, fmt.Errorf("no generator for %q images", req.Kind)
	}
	return next.GenerateImage(ctx, req)
}

var (
	_ assist.ImageGenerator = (*Diagrams)(nil)
	_ assist.ImageGenerator = Router{}
)
