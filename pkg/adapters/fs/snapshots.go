package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/marginalia/pkg/core"
)

const snapshotExt = ".yaml"

func (r *Repository) snapshotDir(documentID string) string {
	return r.systemPath("snapshots", filepath.FromSlash(documentID))
}

// AddSnapshot writes a snapshot under the system directory. Snapshots are
// not committed to git.
func (r *Repository) AddSnapshot(ctx context.Context, s core.Snapshot) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if s.ID == "" {
		return fmt.Errorf("snapshot: %w", core.ErrEmptyID)
	}
	if err := r.validateID(s.DocumentID); err != nil {
		return err
	}
	data, err := serializeSnapshot(s)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return writeFileAtomic(filepath.Join(r.snapshotDir(s.DocumentID), s.ID+snapshotExt), data, 0644)
}

// Snapshot finds a snapshot by ID.
func (r *Repository) Snapshot(ctx context.Context, id string) (core.Snapshot, error) {
	paths, err := r.snapshotPaths()
	if err != nil {
		return core.Snapshot{}, err
	}
	path, ok := paths[id]
	if !ok {
		return core.Snapshot{}, fmt.Errorf("snapshot %s: %w", id, core.ErrNotFound)
	}
	return readSnapshot(path)
}

// Snapshots lists the snapshots of a document, newest first.
func (r *Repository) Snapshots(ctx context.Context, documentID string) ([]core.Snapshot, error) {
	if err := r.validateID(documentID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.snapshotDir(documentID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []core.Snapshot
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != snapshotExt || strings.HasPrefix(e.Name(), TempFilePrefix) {
			continue
		}
		s, err := readSnapshot(filepath.Join(r.snapshotDir(documentID), e.Name()))
		if err != nil {
			r.logger.Debug("skipping unreadable snapshot", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, s)
	}
	sortNewestFirst(out)
	return out, nil
}

// DeleteSnapshots removes snapshots by ID. Unknown IDs are ignored.
func (r *Repository) DeleteSnapshots(ctx context.Context, ids ...string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if len(ids) == 0 {
		return nil
	}
	paths, err := r.snapshotPaths()
	if err != nil {
		return err
	}
	for _, id := range ids {
		path, ok := paths[id]
		if !ok {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove snapshot %s: %w", id, err)
		}
	}
	return nil
}

// snapshotPaths maps every snapshot ID to its file.
func (r *Repository) snapshotPaths() (map[string]string, error) {
	root := r.systemPath("snapshots")
	paths := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != snapshotExt || strings.HasPrefix(d.Name(), TempFilePrefix) {
			return nil
		}
		paths[strings.TrimSuffix(d.Name(), snapshotExt)] = path
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return paths, nil
}

func readSnapshot(path string) (core.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Snapshot{}, err
	}
	return parseSnapshot(data)
}

func sortNewestFirst(snaps []core.Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
		}
		return snaps[i].ID > snaps[j].ID
	})
}
