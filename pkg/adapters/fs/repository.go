package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/git"
)

const (
	// DefaultSystemDir holds the tree sidecars, snapshots, leases and the
	// header index. It is ignored by git.
	DefaultSystemDir = ".marginalia"

	docExt = ".md"
)

// Repository implements core.Repository using the filesystem and Git.
// Documents are markdown files with YAML frontmatter; the editor tree of
// each document is kept next to it under the system directory.
type Repository struct {
	Path   string
	git    *git.Client
	index  *headerIndex
	config Config
	logger *slog.Logger

	mu            sync.RWMutex
	watcherActive bool
	lastReconcile *time.Time
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path         string
	AutoInit     bool
	Gitless      bool
	MustExist    bool
	ReadOnly     bool
	Logger       *slog.Logger
	SystemDir    string      // e.g. ".marginalia"
	ErrorHandler func(error) // receives background watcher errors
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{
		Path:   config.Path,
		git:    git.NewClient(config.Path, filepath.Join(config.SystemDir, "git.lock"), config.Logger),
		config: config,
		index:  newHeaderIndex(config.Path, config.SystemDir),
		logger: logger,
	}
}

// Initialize performs the necessary setup for the repository (mkdir, git init).
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("document root does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("document root is not a directory: %s", r.Path)
		}
	} else if !r.config.ReadOnly {
		if err := os.MkdirAll(r.Path, 0755); err != nil {
			return fmt.Errorf("failed to create document root: %w", err)
		}
	}

	if r.config.Gitless || r.config.ReadOnly {
		return nil
	}
	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	wasNewRepo := false
	if !r.git.IsRepo() {
		if !r.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", r.Path)
		}
		if err := r.git.Init(); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := r.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}
	if mod && wasNewRepo {
		unlock, err := r.git.Lock(ctx)
		if err != nil {
			return err
		}
		defer unlock()
		if err := r.git.Add(".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		if err := r.git.Commit(fmt.Sprintf("chore: configure %s ignore", r.config.SystemDir)); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}
	return nil
}

func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	ignoreEntry := r.config.SystemDir + "/"

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == ignoreEntry {
			return false, nil
		}
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}
	if _, err := f.WriteString(ignoreEntry + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

// validateID rejects IDs that would escape the root or land in reserved
// directories.
func (r *Repository) validateID(id string) error {
	if id == "" {
		return core.ErrEmptyID
	}
	clean := filepath.ToSlash(filepath.Clean(id))
	if clean != id || filepath.IsAbs(id) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid document ID %q", id)
	}
	first := strings.SplitN(clean, "/", 2)[0]
	if first == ".git" || first == r.config.SystemDir {
		return fmt.Errorf("invalid document ID %q: reserved directory", id)
	}
	return nil
}

func (r *Repository) docFile(id string) string { return filepath.FromSlash(id) + docExt }

func (r *Repository) docPath(id string) string { return filepath.Join(r.Path, r.docFile(id)) }

func (r *Repository) systemPath(parts ...string) string {
	return filepath.Join(append([]string{r.Path, r.config.SystemDir}, parts...)...)
}

func (r *Repository) treePath(id string) string {
	return r.systemPath("trees", filepath.FromSlash(id)+".json")
}

// Sync synchronizes the repository with its remote.
func (r *Repository) Sync(ctx context.Context) error {
	if r.config.Gitless {
		return fmt.Errorf("cannot sync in gitless mode: %w", core.ErrUnsupported)
	}
	if !r.git.IsRepo() {
		return fmt.Errorf("path is not a git repository: %s", r.Path)
	}

	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	return r.git.Sync()
}

// Save persists a document to the filesystem and commits it to Git.
//
// Workflow:
//  1. Validate ID.
//  2. Write the markdown file and the tree sidecar atomically.
//  3. (If Git enabled) 'git add' and 'git commit' with the change reason of ctx.
func (r *Repository) Save(ctx context.Context, d core.Document) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if err := r.validateID(d.ID); err != nil {
		return err
	}

	data, err := serializeDocument(d)
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}
	fullPath := r.docPath(d.ID)
	if err := writeFileAtomic(fullPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if len(d.Tree) > 0 {
		if err := writeFileAtomic(r.treePath(d.ID), d.Tree, 0644); err != nil {
			return fmt.Errorf("failed to write tree: %w", err)
		}
	} else if err := os.Remove(r.treePath(d.ID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale tree: %w", err)
	}

	if info, err := os.Stat(fullPath); err == nil {
		r.index.put(filepath.ToSlash(r.docFile(d.ID)), headerOf(d, info))
		if err := r.index.flush(); err != nil {
			r.logger.Warn("failed to write index", "error", err)
		}
	}

	if r.config.Gitless {
		return nil
	}
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	if err := r.git.Add(r.docFile(d.ID)); err != nil {
		return fmt.Errorf("failed to git add: %w", err)
	}
	if err := r.git.Commit(core.ChangeReason(ctx, "update "+d.ID)); err != nil {
		return fmt.Errorf("failed to git commit: %w", err)
	}
	return nil
}

// Get retrieves a document. The stored tree is returned only while the
// markdown body is unchanged since the last Save; otherwise callers fall
// back to importing the markdown.
func (r *Repository) Get(ctx context.Context, id string) (core.Document, error) {
	if err := r.validateID(id); err != nil {
		return core.Document{}, err
	}
	data, err := os.ReadFile(r.docPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return core.Document{}, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
		}
		return core.Document{}, err
	}

	d, fresh, err := parseDocument(data)
	if err != nil {
		return core.Document{}, fmt.Errorf("failed to parse document %s: %w", id, err)
	}
	d.ID = id

	if fresh {
		tree, err := os.ReadFile(r.treePath(id))
		switch {
		case err == nil:
			d.Tree = tree
		case !os.IsNotExist(err):
			return core.Document{}, fmt.Errorf("failed to read tree of %s: %w", id, err)
		}
	} else {
		r.logger.Debug("markdown edited externally, ignoring stored tree", "id", id)
	}
	return d, nil
}

// List returns the headers (ID, Title, UpdatedAt) of all documents, sorted
// by ID. Bodies and trees are left empty; use Get for them.
//
// Workflow:
//  1. Walk the root, skipping .git and the system directory.
//  2. For each markdown file: use the indexed header if the file's mtime
//     and size match, else parse the file and refresh the index.
//  3. Drop headers of vanished files and write the index.
func (r *Repository) List(ctx context.Context) ([]core.Document, error) {
	if err := r.index.load(); err != nil {
		r.logger.Warn("failed to load index, rebuilding", "error", err)
	}
	seen := make(map[string]bool)
	var docs []core.Document

	err := r.walkDocuments(func(relPath, id string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[relPath] = true
		if h, hit := r.index.lookup(relPath, info); hit {
			docs = append(docs, core.Document{ID: h.ID, Title: h.Title, UpdatedAt: h.UpdatedAt})
			return nil
		}

		data, err := os.ReadFile(filepath.Join(r.Path, filepath.FromSlash(relPath)))
		if err != nil {
			return nil
		}
		d, _, err := parseDocument(data)
		if err != nil {
			r.logger.Debug("skipping unparseable document", "path", relPath, "error", err)
			return nil
		}
		d.ID = id
		r.index.put(relPath, headerOf(d, info))
		docs = append(docs, core.Document{ID: id, Title: d.Title, UpdatedAt: d.UpdatedAt})
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.index.retain(seen)
	if !r.config.ReadOnly {
		if err := r.index.flush(); err != nil {
			r.logger.Warn("failed to write index", "error", err)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// walkDocuments calls fn for every markdown document under the root.
func (r *Repository) walkDocuments(fn func(relPath, id string, info os.FileInfo) error) error {
	err := filepath.WalkDir(r.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != r.Path && (d.Name() == ".git" || d.Name() == r.config.SystemDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(d.Name()) != docExt || strings.HasPrefix(d.Name(), TempFilePrefix) {
			return nil
		}
		relPath, err := filepath.Rel(r.Path, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(relPath, strings.TrimSuffix(relPath, docExt), info)
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Delete removes a document and its tree.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if err := r.validateID(id); err != nil {
		return err
	}
	fullPath := r.docPath(id)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	if err := os.Remove(r.treePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove tree: %w", err)
	}
	r.index.remove(filepath.ToSlash(r.docFile(id)))
	if err := r.index.flush(); err != nil {
		r.logger.Warn("failed to write index", "error", err)
	}

	if r.config.Gitless {
		if err := os.Remove(fullPath); err != nil {
			return fmt.Errorf("failed to remove file: %w", err)
		}
		return nil
	}

	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	if err := r.git.Rm(r.docFile(id)); err != nil {
		return fmt.Errorf("failed to git rm: %w", err)
	}
	// Never committed files are not removed by git rm.
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	if err := r.git.Commit(core.ChangeReason(ctx, "delete "+id)); err != nil {
		return fmt.Errorf("failed to git commit: %w", err)
	}
	return nil
}

// IsGitInstalled checks if git is available in the system path.
func IsGitInstalled() bool {
	return git.IsInstalled()
}

var (
	_ core.Repository    = (*Repository)(nil)
	_ core.SnapshotStore = (*Repository)(nil)
	_ core.LeaseStore    = (*Repository)(nil)
	_ core.Watchable     = (*Repository)(nil)
	_ core.Syncable      = (*Repository)(nil)
)
