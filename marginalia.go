package marginalia

import (
	"context"
	"log/slog"

	"github.com/aretw0/marginalia/internal/platform"
	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/session"
)

// --- Types ---

// Session is a live editing session on one document.
type Session = session.Session

// Features are the switchable engines of a session.
type Features = session.Features

// SessionOption configures a Session.
type SessionOption = session.Option

// Config is the file configuration of a document root.
type Config = platform.Config

// --- Configuration ---

// Option defines a functional option for configuring the service.
type Option = platform.Option

// WithAutoInit creates the document root (and its git repository) if missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithVersioning enables or disables git versioning.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist ensures the document root must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository allows injecting a custom storage adapter.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithAdapter selects the storage adapter by name ("fs" or "sqlite").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithSystemDir sets the hidden directory name (default ".marginalia").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithLeaseStore arbitrates leases in "badger" or "memory" instead of the
// repository.
func WithLeaseStore(name string) Option {
	return platform.WithLeaseStore(name)
}

// WithLeases injects a lease store, e.g. one shared by several services.
func WithLeases(store core.LeaseStore) Option {
	return platform.WithLeases(store)
}

// WithReadOnly opens the storage without writing to it.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the `go run` sandbox.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithWatcherErrorHandler receives background watcher errors.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// New creates the document service for a root.
func New(path string, opts ...Option) (*core.Service, error) {
	return platform.New(path, opts...)
}

// Init initializes a repository explicitly.
func Init(path string, opts ...Option) (core.Repository, error) {
	return platform.Init(path, opts...)
}

// Open starts an editing session on a stored document.
func Open(ctx context.Context, svc *core.Service, id string, opts ...SessionOption) (*Session, error) {
	return session.Open(ctx, svc, id, opts...)
}

// --- Operations ---

// Sync performs a synchronization (pull/push) of a versioned root.
func Sync(path string, opts ...Option) error {
	return platform.Sync(path, opts...)
}

// --- Safety & Utils ---

// ResolveRootPath determines the actual root path based on safety rules.
func ResolveRootPath(userPath string, forceTemp bool) string {
	return platform.ResolveRootPath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards for a document root.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// LoadConfig reads a YAML or TOML configuration file.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// --- Change reasons ---

// Commit types for change reasons.
const (
	CommitTypeDocs     = platform.CommitTypeDocs
	CommitTypeRevert   = platform.CommitTypeRevert
	CommitTypeChore    = platform.CommitTypeChore
	CommitTypeRefactor = platform.CommitTypeRefactor
)

// FormatChangeReason builds a Conventional Commit message for a save.
func FormatChangeReason(ctype, scope, subject, body string) string {
	return platform.FormatChangeReason(ctype, scope, subject, body)
}

// AppendFooter signs a free-form change reason.
func AppendFooter(msg string) string {
	return platform.AppendFooter(msg)
}
