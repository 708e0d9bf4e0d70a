package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/marginalia"
	"github.com/aretw0/marginalia/internal/platform"
	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/session"
)

// workspace is the document root the command runs against.
type workspace struct {
	root string
	cfg  platform.Config
	svc  *core.Service
}

// resolveWorkspace finds the root and its configuration without opening
// storage.
func resolveWorkspace() (string, platform.Config, error) {
	if configPath != "" {
		cfg, err := platform.LoadConfig(configPath)
		if err != nil {
			return "", platform.Config{}, err
		}
		return cfg.Root(), cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", platform.Config{}, err
	}
	root, err := platform.FindRoot(cwd)
	if errors.Is(err, platform.ErrRootNotFound) {
		root = cwd
	} else if err != nil {
		return "", platform.Config{}, err
	}

	cfg, _, err := platform.FindConfig(root)
	if err != nil && !errors.Is(err, platform.ErrNoConfig) {
		return "", platform.Config{}, err
	}
	if r := cfg.Root(); r != "" {
		root = r
	}
	return root, cfg, nil
}

// openWorkspace opens the storage of the current root. Only init creates it.
func openWorkspace(create bool) (*workspace, error) {
	root, cfg, err := resolveWorkspace()
	if err != nil {
		return nil, err
	}

	opts := append(cfg.Options(),
		marginalia.WithLogger(slog.Default()),
		marginalia.WithAutoInit(create),
		marginalia.WithMustExist(!create),
	)
	if adapter != "" {
		opts = append(opts, marginalia.WithAdapter(adapter))
	}

	svc, err := marginalia.New(root, opts...)
	if err != nil {
		return nil, err
	}
	return &workspace{root: root, cfg: cfg, svc: svc}, nil
}

func mustWorkspace() *workspace {
	ws, err := openWorkspace(false)
	if err != nil {
		fatal("Failed to open document root", err)
	}
	return ws
}

func (ws *workspace) Close() {
	if err := ws.svc.Close(); err != nil {
		slog.Warn("failed to close storage", "error", err)
	}
}

// session opens an editing session for a one-shot command. Background
// autosave and snapshots are off; commands save explicitly.
func (ws *workspace) session(ctx context.Context, id string, extra ...session.Option) (*session.Session, error) {
	opts, err := ws.cfg.SessionOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		session.WithLogger(slog.Default()),
		session.WithAutosaveDelay(-1),
		session.WithAutoSnapshots(-1),
		session.WithMetrics(metrics),
	)
	return session.Open(ctx, ws.svc, id, append(opts, extra...)...)
}

// editable opens a session that must hold the document's lease.
func (ws *workspace) editable(ctx context.Context, id string, extra ...session.Option) *session.Session {
	s, err := ws.session(ctx, id, extra...)
	if err != nil {
		fatal("Failed to open document", err)
	}
	if s.ViewOnly() {
		holder := "another session"
		if l, ok := s.Lease(); ok {
			holder = l.Holder
		}
		_ = s.Close(ctx)
		fatal("Document is locked", fmt.Errorf("%s holds %s", holder, id))
	}
	return s
}

// closeSession saves with reason and ends the session.
func closeSession(ctx context.Context, s *session.Session, reason string) {
	ctx = core.WithChangeReason(ctx, reason)
	if err := s.Save(ctx); err != nil {
		fatal("Failed to save document", err)
	}
	if err := s.Close(ctx); err != nil {
		fatal("Failed to close session", err)
	}
}

// load reads a stored document as a tree.
func (ws *workspace) load(ctx context.Context, id string) (core.Document, *doc.Doc, error) {
	stored, err := ws.svc.GetDocument(ctx, id)
	if err != nil {
		return core.Document{}, nil, err
	}
	if len(stored.Tree) > 0 {
		d, err := doc.ParseJSON(stored.Tree)
		if err == nil {
			return stored, d, nil
		}
		slog.Warn("stored tree is invalid, reading markdown", "id", id, "error", err)
	}
	d, err := doc.FromMarkdown(stored.Markdown)
	return stored, d, err
}
