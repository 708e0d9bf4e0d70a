package assist

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"

	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/transform"
)

// Key identifies a placeholder node independently of its position.
type Key struct {
	RequestID uuid.UUID
	Prompt    string
}

func (k Key) String() string { return k.RequestID.String() }

// Placeholders inserts generated images and diagrams. A placeholder node is
// inserted at once; when the service answers, the node is found again by
// its key and filled in, or removed on failure.
type Placeholders struct {
	ed      *editor.Editor
	gen     ImageGenerator
	tracker *Tracker
	logger  *slog.Logger
}

// NewPlaceholders creates the coordinator. tracker and logger may be nil.
func NewPlaceholders(ed *editor.Editor, gen ImageGenerator, tracker *Tracker, logger *slog.Logger) *Placeholders {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Placeholders{ed: ed, gen: gen, tracker: tracker, logger: logger}
}

func nodeType(kind ImageKind) doc.NodeType {
	if kind == ImageKindDiagram {
		return doc.TypeDiagram
	}
	return doc.TypeGeneratedImage
}

// Insert places a generating placeholder after the block holding the cursor
// and starts the generation under ctx.
func (p *Placeholders) Insert(ctx context.Context, kind ImageKind, prompt string) (Key, error) {
	key := Key{RequestID: uuid.New(), Prompt: prompt}
	var anchor int
	var contextText string
	_, err := p.ed.Update(func(s editor.State) (*transform.Transaction, error) {
		pos, err := blockInsertPos(s.Doc, s.Selection.Head)
		if err != nil {
			return nil, err
		}
		anchor = pos
		contextText = tail(s.Doc.TextContent(), defaultContextWindow)
		tr := transform.New(s.Doc).SetProvenance(transform.ProvenanceSystem)
		attrs := doc.Attrs{"prompt": prompt, "requestId": key.RequestID.String(), "generating": true}
		if err := tr.Insert(pos, doc.Leaf(nodeType(kind), attrs)); err != nil {
			return nil, fmt.Errorf("failed to insert placeholder: %w", err)
		}
		return tr, nil
	})
	if err != nil {
		return Key{}, err
	}

	id := p.tracker.start(Pending{ID: key.RequestID, Kind: "placeholder", Anchor: anchor, Key: key.String(), AnchorContent: prompt})
	req := ImageRequest{Prompt: prompt, ContextText: contextText, Kind: kind}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		res, err := p.gen.GenerateImage(ctx, req)
		status := p.resolve(key, kind, res, err)
		p.tracker.finish(id, status)
		return err
	}, lifecycle.WithErrorHandler(func(err error) {
		p.logger.Warn("generation failed", "request", key.String(), "error", err)
	}))
	return key, nil
}

// Find locates the placeholder with key in d.
func Find(d *doc.Doc, key Key) (int, bool) {
	pos, found := 0, false
	d.Descendants(func(n doc.Node) bool {
		if n.Type != doc.TypeGeneratedImage && n.Type != doc.TypeDiagram {
			return true
		}
		if n.Attrs.String("requestId") == key.RequestID.String() && n.Attrs.String("prompt") == key.Prompt && n.Attrs.Bool("generating") {
			pos, found = n.Pos, true
			return false
		}
		return true
	})
	return pos, found
}

func (p *Placeholders) resolve(key Key, kind ImageKind, res ImageResult, genErr error) Status {
	status := StatusApplied
	_, err := p.ed.Update(func(s editor.State) (*transform.Transaction, error) {
		pos, ok := Find(s.Doc, key)
		if !ok {
			// Deleted or replaced while generating.
			status = StatusDropped
			return nil, nil
		}
		tr := transform.New(s.Doc).SetProvenance(transform.ProvenanceSystem)
		if genErr != nil {
			status = StatusFailed
			return tr, tr.Delete(pos, pos+1)
		}
		attrs := doc.Attrs{"generating": false}
		if kind == ImageKindDiagram {
			attrs["snapshot"] = string(res.Shapes)
		} else {
			attrs["src"] = res.URL
		}
		return tr, tr.SetNodeAttrs(pos, attrs)
	})
	if err != nil {
		p.logger.Debug("placeholder update skipped", "request", key.String(), "error", err)
		return StatusDropped
	}
	return status
}

// blockInsertPos returns the position after the top-level block containing
// pos, or pos itself when it already sits between blocks.
func blockInsertPos(d *doc.Doc, pos int) (int, error) {
	r, err := d.Resolve(pos)
	if err != nil {
		return 0, err
	}
	if r.Depth == 0 {
		return pos, nil
	}
	end := d.Size()
	d.Descendants(func(n doc.Node) bool {
		if n.Depth == 0 && n.Pos < pos && pos < n.End {
			end = n.End
			return false
		}
		return n.Pos < pos
	})
	return end, nil
}
