package readability

import (
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/transform"
)

// Decoration is an issue placed on document positions.
type Decoration struct {
	Issue
	// DocFrom and DocTo delimit the decorated range in the document.
	DocFrom int `json:"doc_from"`
	DocTo   int `json:"doc_to"`
}

// DecorationSet is the issue overlay for one revision of a document.
type DecorationSet struct {
	Revision uint64       `json:"revision"`
	Items    []Decoration `json:"items"`
}

// Plugin keeps a decoration set in step with the editor. Deleted suggestions
// are not analyzed.
type Plugin struct {
	analyzer *Analyzer
	logger   *slog.Logger

	mu      sync.RWMutex
	enabled bool
	set     DecorationSet
}

// PluginOption configures a Plugin.
type PluginOption func(*Plugin)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PluginOption {
	return func(p *Plugin) {
		p.logger = logger
	}
}

// NewPlugin creates a disabled plugin using a.
func NewPlugin(a *Analyzer, opts ...PluginOption) *Plugin {
	p := &Plugin{analyzer: a}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

func (p *Plugin) Name() string { return "readability" }

// Enabled reports whether the analyzer runs.
func (p *Plugin) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// SetEnabled switches analysis on or off. Turning it on analyzes state right
// away; turning it off clears the decorations.
func (p *Plugin) SetEnabled(enabled bool, state editor.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
	if !enabled {
		p.set = DecorationSet{}
		return
	}
	p.set = p.compute(state)
}

// Decorations returns the current set.
func (p *Plugin) Decorations() DecorationSet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.set
}

// Applied recomputes the set whenever the document changed.
func (p *Plugin) Applied(tr *transform.Transaction, _, newState editor.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled || !tr.DocChanged() {
		return
	}
	p.set = p.compute(newState)
}

func (p *Plugin) compute(state editor.State) DecorationSet {
	proj := state.Doc.PlainText(true)
	issues := p.analyzer.Analyze(proj.Text)
	set := DecorationSet{Revision: state.Revision, Items: make([]Decoration, 0, len(issues))}
	for _, is := range issues {
		from, to, ok := proj.Range(is.From, is.To)
		if !ok {
			p.logger.Debug("issue outside projection", "issue", is.String())
			continue
		}
		set.Items = append(set.Items, Decoration{Issue: is, DocFrom: from, DocTo: to})
	}
	return set
}

var _ editor.Observer = (*Plugin)(nil)
