package llm

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/marginalia/pkg/assist"
)

// ErrNoBackend is returned when no API key is configured.
var ErrNoBackend = errors.New("no generation backend configured (set ANTHROPIC_API_KEY or OPENAI_API_KEY)")

// Backends are the generation services assembled from the environment.
type Backends struct {
	Text   assist.Generator
	Images assist.ImageGenerator // diagrams always; pictures only with OpenAI
	Model  string
}

// FromEnv builds backends from ANTHROPIC_API_KEY/CLAUDE_MODEL and
// OPENAI_API_KEY/OPENAI_MODEL. Anthropic serves text when both are set;
// images need OpenAI. Text generation is rate limited with DefaultRateLimit.
func FromEnv(logger *slog.Logger) (Backends, error) {
	return fromLookup(os.Getenv, logger)
}

func fromLookup(getenv func(string) string, logger *slog.Logger) (Backends, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var (
		b      Backends
		openAI *OpenAI
	)

	if key := strings.TrimSpace(getenv("OPENAI_API_KEY")); key != "" {
		c, err := NewOpenAI(key, WithModel(getenv("OPENAI_MODEL")), WithLogger(logger))
		if err != nil {
			return Backends{}, err
		}
		openAI = c
		b.Text, b.Model = c, c.Model()
	}
	if key := strings.TrimSpace(getenv("ANTHROPIC_API_KEY")); key != "" {
		c, err := NewAnthropic(key, WithModel(getenv("CLAUDE_MODEL")), WithLogger(logger))
		if err != nil {
			return Backends{}, err
		}
		b.Text, b.Model = c, c.Model()
	}
	if b.Text == nil {
		return Backends{}, ErrNoBackend
	}

	b.Text = NewLimited(b.Text, DefaultRateLimit)
	router := Router{Diagram: NewDiagrams(b.Text, "")}
	if openAI != nil {
		router.Image = openAI
	}
	b.Images = router
	logger.Debug("generation backend configured", "model", b.Model, "images", openAI != nil)
	return b, nil
}
