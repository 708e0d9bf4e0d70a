// Package sqlite implements the marginalia persistence ports on a single
// SQLite database: documents, snapshots and leases live in one file, which
// suits deployments without a git checkout.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aretw0/marginalia/pkg/adapters/sqlite/migrations"
	"github.com/aretw0/marginalia/pkg/core"
)

// DefaultFile is the database file name used when Config.Path is a directory.
const DefaultFile = "marginalia.db"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config holds the configuration for the SQLite repository.
type Config struct {
	Path     string // database file, a directory (DefaultFile is appended) or MemoryPath
	ReadOnly bool
	Logger   *slog.Logger
}

// Repository implements core.Repository, core.SnapshotStore and
// core.LeaseStore on SQLite.
type Repository struct {
	config Config
	logger *slog.Logger
	dsn    string

	mu      sync.RWMutex
	db      *sql.DB
	version int
}

// NewRepository creates a repository. The database is opened by Initialize.
func NewRepository(config Config) *Repository {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{config: config, logger: logger}
}

// Initialize opens the database and applies pending migrations.
func (r *Repository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		return nil
	}

	path := r.config.Path
	switch {
	case path == "":
		return errors.New("sqlite: database path is empty")
	case path == MemoryPath:
	default:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, DefaultFile)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == MemoryPath {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a distinct database.
		db.SetMaxOpenConns(1)
	}

	version, err := migrate(ctx, db, migrations.FS)
	if err != nil {
		db.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	r.logger.Debug("sqlite repository ready", "path", path, "schema_version", version)

	r.db, r.dsn, r.version = db, path, version
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Repository) conn() (*sql.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return nil, errors.New("sqlite: repository not initialized")
	}
	return r.db, nil
}

// migrate applies every NNN_name.up.sql file above the recorded version and
// returns the resulting schema version.
func migrate(ctx context.Context, db *sql.DB, fsys fs.FS) (int, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return 0, fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return 0, fmt.Errorf("reading migration %s: %w", name, err)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("committing migration %s: %w", name, err)
		}
		current = version
	}
	return current, nil
}

// ==================== Documents ====================

// Save inserts or replaces a document.
func (r *Repository) Save(ctx context.Context, d core.Document) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if d.ID == "" {
		return core.ErrEmptyID
	}
	db, err := r.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (id, title, tree, markdown, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			tree = excluded.tree,
			markdown = excluded.markdown,
			updated_at = excluded.updated_at
	`, d.ID, d.Title, nullableJSON(d.Tree), d.Markdown, toNanos(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving document %s: %w", d.ID, err)
	}
	return nil
}

// Get retrieves a document by ID.
func (r *Repository) Get(ctx context.Context, id string) (core.Document, error) {
	if id == "" {
		return core.Document{}, core.ErrEmptyID
	}
	db, err := r.conn()
	if err != nil {
		return core.Document{}, err
	}
	var (
		d       = core.Document{ID: id}
		tree    sql.NullString
		updated int64
	)
	err = db.QueryRowContext(ctx,
		"SELECT title, tree, markdown, updated_at FROM documents WHERE id = ?", id,
	).Scan(&d.Title, &tree, &d.Markdown, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Document{}, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Document{}, fmt.Errorf("getting document %s: %w", id, err)
	}
	if tree.Valid {
		d.Tree = []byte(tree.String)
	}
	d.UpdatedAt = fromNanos(updated)
	return d, nil
}

// List returns document headers sorted by ID.
func (r *Repository) List(ctx context.Context) ([]core.Document, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT id, title, updated_at FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		var (
			d       core.Document
			updated int64
		)
		if err := rows.Scan(&d.ID, &d.Title, &updated); err != nil {
			return nil, err
		}
		d.UpdatedAt = fromNanos(updated)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes a document and its lease.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if id == "" {
		return core.ErrEmptyID
	}
	db, err := r.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM leases WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting lease of %s: %w", id, err)
	}
	return nil
}

// ==================== Snapshots ====================

// AddSnapshot stores a snapshot.
func (r *Repository) AddSnapshot(ctx context.Context, s core.Snapshot) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if s.ID == "" || s.DocumentID == "" {
		return fmt.Errorf("snapshot: %w", core.ErrEmptyID)
	}
	db, err := r.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO snapshots (id, document_id, trigger_kind, label, markdown, tree, word_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.DocumentID, string(s.Trigger), s.Label, s.Markdown, nullableJSON(s.Tree), s.WordCount, toNanos(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("adding snapshot %s: %w", s.ID, err)
	}
	return nil
}

const snapshotColumns = "id, document_id, trigger_kind, label, markdown, tree, word_count, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (core.Snapshot, error) {
	var (
		s       core.Snapshot
		trigger string
		tree    sql.NullString
		created int64
	)
	if err := row.Scan(&s.ID, &s.DocumentID, &trigger, &s.Label, &s.Markdown, &tree, &s.WordCount, &created); err != nil {
		return core.Snapshot{}, err
	}
	t, err := core.ParseTrigger(trigger)
	if err != nil {
		return core.Snapshot{}, err
	}
	s.Trigger = t
	if tree.Valid {
		s.Tree = []byte(tree.String)
	}
	s.CreatedAt = fromNanos(created)
	return s, nil
}

// Snapshot retrieves one snapshot by ID.
func (r *Repository) Snapshot(ctx context.Context, id string) (core.Snapshot, error) {
	db, err := r.conn()
	if err != nil {
		return core.Snapshot{}, err
	}
	s, err := scanSnapshot(db.QueryRowContext(ctx, "SELECT "+snapshotColumns+" FROM snapshots WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, fmt.Errorf("snapshot %s: %w", id, core.ErrNotFound)
	}
	return s, err
}

// Snapshots lists the snapshots of a document, newest first.
func (r *Repository) Snapshots(ctx context.Context, documentID string) ([]core.Snapshot, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT "+snapshotColumns+" FROM snapshots WHERE document_id = ? ORDER BY created_at DESC, id DESC",
		documentID)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []core.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSnapshots removes snapshots by ID. Unknown IDs are ignored.
func (r *Repository) DeleteSnapshots(ctx context.Context, ids ...string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if len(ids) == 0 {
		return nil
	}
	db, err := r.conn()
	if err != nil {
		return err
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := "DELETE FROM snapshots WHERE id IN (?" + strings.Repeat(", ?", len(ids)-1) + ")"
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting snapshots: %w", err)
	}
	return nil
}

// ==================== Leases ====================

// Acquire implements core.LeaseStore as one conditional upsert: the row is
// written only when it is free, expired or already held by holder.
func (r *Repository) Acquire(ctx context.Context, documentID, holder string, now time.Time, ttl time.Duration) (core.Lease, error) {
	if r.config.ReadOnly {
		return core.Lease{}, core.ErrReadOnly
	}
	if documentID == "" {
		return core.Lease{}, core.ErrEmptyID
	}
	db, err := r.conn()
	if err != nil {
		return core.Lease{}, err
	}
	nowNanos := now.UnixNano()
	var acquired, expires int64
	var got string
	err = db.QueryRowContext(ctx, `
		INSERT INTO leases (document_id, holder, acquired_at, expires_at)
		VALUES (?1, ?2, ?3, ?4)
		ON CONFLICT(document_id) DO UPDATE SET
			holder = excluded.holder,
			acquired_at = CASE
				WHEN leases.holder = excluded.holder AND leases.expires_at > ?3 THEN leases.acquired_at
				ELSE excluded.acquired_at
			END,
			expires_at = excluded.expires_at
		WHERE leases.holder = excluded.holder OR leases.expires_at <= ?3
		RETURNING holder, acquired_at, expires_at
	`, documentID, holder, nowNanos, now.Add(ttl).UnixNano()).Scan(&got, &acquired, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		cur, lerr := r.Lease(ctx, documentID)
		if lerr != nil {
			return core.Lease{}, lerr
		}
		return cur, core.ErrLocked
	}
	if err != nil {
		return core.Lease{}, fmt.Errorf("acquiring lease on %s: %w", documentID, err)
	}
	return core.Lease{
		DocumentID: documentID,
		Holder:     got,
		AcquiredAt: fromNanos(acquired),
		ExpiresAt:  fromNanos(expires),
	}, nil
}

// Release drops the lease if holder owns it.
func (r *Repository) Release(ctx context.Context, documentID, holder string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	db, err := r.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM leases WHERE document_id = ? AND holder = ?", documentID, holder); err != nil {
		return fmt.Errorf("releasing lease on %s: %w", documentID, err)
	}
	return nil
}

// Lease returns the current lease of a document.
func (r *Repository) Lease(ctx context.Context, documentID string) (core.Lease, error) {
	db, err := r.conn()
	if err != nil {
		return core.Lease{}, err
	}
	l := core.Lease{DocumentID: documentID}
	var acquired, expires int64
	err = db.QueryRowContext(ctx,
		"SELECT holder, acquired_at, expires_at FROM leases WHERE document_id = ?", documentID,
	).Scan(&l.Holder, &acquired, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Lease{}, fmt.Errorf("lease %s: %w", documentID, core.ErrNotFound)
	}
	if err != nil {
		return core.Lease{}, err
	}
	l.AcquiredAt, l.ExpiresAt = fromNanos(acquired), fromNanos(expires)
	return l, nil
}

// ==================== Introspection ====================

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path          string `json:"path"`
	ReadOnly      bool   `json:"read_only"`
	Open          bool   `json:"open"`
	SchemaVersion int    `json:"schema_version"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RepositoryState{
		Path:          r.dsn,
		ReadOnly:      r.config.ReadOnly,
		Open:          r.db != nil,
		SchemaVersion: r.version,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "sqlite"
}

func nullableJSON(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// Times are stored as Unix nanoseconds; 0 stands for the zero time.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

var (
	_ core.Repository              = (*Repository)(nil)
	_ core.SnapshotStore           = (*Repository)(nil)
	_ core.LeaseStore              = (*Repository)(nil)
	_ introspection.Introspectable = (*Repository)(nil)
	_ introspection.Component      = (*Repository)(nil)
)
