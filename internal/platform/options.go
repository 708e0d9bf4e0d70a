package platform

import (
	"log/slog"

	"github.com/aretw0/marginalia/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterFS     = "fs"
	AdapterSQLite = "sqlite"
)

// Lease store names accepted by WithLeaseStore.
const (
	LeasesRepository = ""
	LeasesBadger     = "badger"
	LeasesMemory     = "memory"
)

// options holds the internal configuration for the marginalia service.
type options struct {
	repository core.Repository
	leases     core.LeaseStore
	logger     *slog.Logger
	adapter    string
	config     map[string]interface{}
}

// Option defines a functional option for configuring marginalia.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: AdapterFS,
		config:  make(map[string]interface{}),
	}
}

func parseOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithAutoInit creates the document root (and its git repository when
// versioning) if missing.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.config["auto_init"] = auto
	}
}

// WithVersioning enables or disables git versioning of the fs adapter.
// When unset, versioning follows the presence of a .git directory.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.config["gitless"] = !enabled
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithMustExist ensures the document root already exists.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithLogger sets the logger for the service and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository injects a storage adapter, skipping adapter selection.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithAdapter selects the storage adapter by name. Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		if name != "" {
			o.adapter = name
		}
	}
}

// WithSystemDir sets the hidden directory name. Defaults to ".marginalia".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithLeaseStore arbitrates document leases outside the repository: in a
// BadgerDB under the system directory ("badger") or in process memory
// ("memory").
func WithLeaseStore(name string) Option {
	return func(o *options) {
		o.config["lease_store"] = name
	}
}

// WithLeases injects a lease store.
func WithLeases(store core.LeaseStore) Option {
	return func(o *options) {
		o.leases = store
	}
}

// WithWatcherErrorHandler receives errors of the fs watch loop, which are
// otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithReadOnly enables read-only mode.
// In this mode:
// 1. Write operations (Save, Delete, Sync, leases) return ErrReadOnly.
// 2. Initialization (Mkdir, Git Init) is skipped.
// 3. Dev Safety Lock (go run temp dir) is BYPASSED (uses real path).
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithDevSafety controls the sandbox used when running via `go run`.
// By default (true), a temporary directory replaces the document root to
// prevent accidental data loss.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}
