package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/marginalia/pkg/adapters/fs"
	"github.com/aretw0/marginalia/pkg/adapters/kv"
	"github.com/aretw0/marginalia/pkg/adapters/sqlite"
	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/lease"
)

// Init prepares the storage for a document root and returns its
// repository. The uri is adapter-specific: the document directory for
// "fs", the database file or directory for "sqlite".
func Init(uri string, opts ...Option) (core.Repository, error) {
	return initRepository(uri, parseOptions(opts))
}

func initRepository(uri string, o *options) (core.Repository, error) {
	if o.repository != nil {
		return o.repository, nil
	}

	var repo core.Repository
	var err error
	switch o.adapter {
	case AdapterFS:
		repo, err = initFS(uri, o)
	case AdapterSQLite:
		repo, err = initSQLite(uri, o)
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
	if err != nil {
		return nil, err
	}

	if err := repo.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

// resolvePath applies the dev sandbox rules to uri.
func resolvePath(uri string, o *options) string {
	tempDir, _ := o.config["temp_dir"].(bool)
	readOnly, _ := o.config["read_only"].(bool)
	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}
	bypassSafety := readOnly || !devSafety
	useTemp := tempDir || (IsDevRun() && !bypassSafety)
	resolved := ResolveRootPath(uri, useTemp)

	if o.logger != nil && IsDevRun() {
		switch {
		case readOnly:
			o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolved)
		case bypassSafety:
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
		default:
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolved)
		}
	}
	if o.logger != nil && useTemp && resolved != uri {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", uri, "resolved_path", resolved)
	}
	return resolved
}

func systemDir(o *options) string {
	if dir, _ := o.config["system_dir"].(string); dir != "" {
		return dir
	}
	return fs.DefaultSystemDir
}

// initFS handles the initialization logic for the filesystem adapter.
func initFS(path string, o *options) (core.Repository, error) {
	autoInit, _ := o.config["auto_init"].(bool)
	gitless, _ := o.config["gitless"].(bool)
	mustExist, _ := o.config["must_exist"].(bool)
	readOnly, _ := o.config["read_only"].(bool)
	tempDir, _ := o.config["temp_dir"].(bool)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))
	sysDir := systemDir(o)

	resolved := resolvePath(path, o)
	useTemp := resolved != path || tempDir

	// Without an explicit choice, versioning follows the directory: an
	// existing .git means git; a fresh root created by auto init gets git
	// unless it already carries a gitless system dir.
	if _, ok := o.config["gitless"]; !ok {
		switch {
		case exists(filepath.Join(resolved, ".git")):
			gitless = false
		case autoInit:
			gitless = exists(filepath.Join(resolved, sysDir))
		default:
			gitless = true
		}
		if gitless && o.logger != nil {
			o.logger.Debug("auto-detected gitless mode", "reason", ".git missing")
		}
	}

	return fs.NewRepository(fs.Config{
		Path:         resolved,
		AutoInit:     autoInit,
		Gitless:      gitless,
		MustExist:    mustExist || (!autoInit && !useTemp),
		ReadOnly:     readOnly,
		Logger:       o.logger,
		SystemDir:    sysDir,
		ErrorHandler: errorHandler,
	}), nil
}

// initSQLite opens a database. A directory uri keeps the database under
// its system directory.
func initSQLite(uri string, o *options) (core.Repository, error) {
	readOnly, _ := o.config["read_only"].(bool)
	path := uri
	if uri != sqlite.MemoryPath {
		resolved := resolvePath(uri, o)
		path = resolved
		if filepath.Ext(resolved) == "" {
			path = filepath.Join(resolved, systemDir(o))
			if !readOnly {
				if err := os.MkdirAll(path, 0755); err != nil {
					return nil, fmt.Errorf("failed to create database directory: %w", err)
				}
			}
		}
	}
	return sqlite.NewRepository(sqlite.Config{Path: path, ReadOnly: readOnly, Logger: o.logger}), nil
}

// openLeases returns the lease store selected by the options, or nil to use
// the repository's own.
func openLeases(uri string, o *options) (core.LeaseStore, error) {
	if o.leases != nil {
		return o.leases, nil
	}
	name, _ := o.config["lease_store"].(string)
	switch name {
	case LeasesRepository:
		return nil, nil
	case LeasesMemory:
		return lease.NewMemoryStore(), nil
	case LeasesBadger:
		if uri == sqlite.MemoryPath {
			return kv.Open(kv.Config{InMemory: true, Logger: o.logger})
		}
		root := resolvePath(uri, o)
		dir := filepath.Join(root, systemDir(o), "leases")
		if o.adapter == AdapterSQLite && filepath.Ext(root) != "" {
			dir = filepath.Join(filepath.Dir(root), "leases")
		}
		return kv.Open(kv.Config{Path: dir, Logger: o.logger})
	}
	return nil, fmt.Errorf("unknown lease store: %s", name)
}

// Sync synchronizes the document root at uri with its remote.
func Sync(uri string, opts ...Option) error {
	o := parseOptions(opts)

	repo := o.repository
	if repo == nil {
		if o.adapter != AdapterFS {
			return fmt.Errorf("adapter %s: sync: %w", o.adapter, core.ErrUnsupported)
		}
		o.config["must_exist"] = true
		var err error
		if repo, err = initFS(uri, o); err != nil {
			return err
		}
	}

	syncable, ok := repo.(core.Syncable)
	if !ok {
		return fmt.Errorf("repository does not support synchronization")
	}
	return syncable.Sync(context.Background())
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
