package platform_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/internal/platform"
	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/git"
)

func setupService(t *testing.T, opts ...platform.Option) (*core.Service, string) {
	t.Helper()
	tmpDir := t.TempDir()
	svc, err := platform.New(tmpDir, append([]platform.Option{platform.WithAutoInit(true)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, tmpDir
}

func TestNew_FS(t *testing.T) {
	if !git.IsInstalled() {
		t.Skip("git not installed")
	}
	ctx := core.WithChangeReason(context.Background(), "add essay")
	svc, root := setupService(t)

	require.NoError(t, svc.SaveDocument(ctx, core.Document{ID: "essay", Title: "Essay", Markdown: "# Essay\n"}))
	_, err := os.Stat(filepath.Join(root, "essay.md"))
	require.NoError(t, err)

	state := svc.State().(core.ServiceState)
	assert.Equal(t, "fs", state.RepositoryType)
	assert.True(t, state.Syncable)
	assert.True(t, state.Leases)

	log, err := git.NewClient(root, filepath.Join(".marginalia", "git.lock"), nil).Run("log", "--oneline")
	require.NoError(t, err)
	assert.Contains(t, log, "add essay")
}

func TestNew_Gitless(t *testing.T) {
	svc, root := setupService(t, platform.WithVersioning(false))
	require.NoError(t, svc.SaveDocument(context.Background(), core.Document{ID: "note", Markdown: "hi"}))

	_, err := os.Stat(filepath.Join(root, ".git"))
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, svc.Sync(context.Background()), core.ErrUnsupported)
}

func TestNew_SQLite(t *testing.T) {
	ctx := context.Background()
	svc, root := setupService(t, platform.WithAdapter(platform.AdapterSQLite))

	require.NoError(t, svc.SaveDocument(ctx, core.Document{ID: "essay", Markdown: "x"}))
	_, err := os.Stat(filepath.Join(root, ".marginalia", "marginalia.db"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", svc.State().(core.ServiceState).RepositoryType)

	_, err = svc.Watch(ctx, "**")
	assert.ErrorIs(t, err, core.ErrUnsupported)
}

func TestNew_LeaseStores(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{platform.LeasesMemory, platform.LeasesBadger} {
		t.Run(name, func(t *testing.T) {
			svc, _ := setupService(t, platform.WithVersioning(false), platform.WithLeaseStore(name))
			leases, err := svc.Leases()
			require.NoError(t, err)

			now := time.Now()
			_, err = leases.Acquire(ctx, "essay", "alice", now, time.Minute)
			require.NoError(t, err)
			_, err = leases.Acquire(ctx, "essay", "bob", now, time.Minute)
			assert.ErrorIs(t, err, core.ErrLocked)
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		_, err := platform.New(t.TempDir(), platform.WithAutoInit(true), platform.WithVersioning(false), platform.WithLeaseStore("etcd"))
		assert.Error(t, err)
	})
}

func TestNew_Errors(t *testing.T) {
	_, err := platform.New(t.TempDir(), platform.WithAdapter("s3"))
	assert.Error(t, err)

	missing := filepath.Join(t.TempDir(), "missing")
	_, err = platform.New(missing, platform.WithMustExist(true), platform.WithVersioning(false))
	assert.Error(t, err)
}

func TestNew_ReadOnly(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	svc, err := platform.New(root, platform.WithAutoInit(true), platform.WithVersioning(false))
	require.NoError(t, err)
	require.NoError(t, svc.SaveDocument(ctx, core.Document{ID: "essay", Markdown: "x"}))

	ro, err := platform.New(root, platform.WithReadOnly(true))
	require.NoError(t, err)
	_, err = ro.GetDocument(ctx, "essay")
	require.NoError(t, err)
	assert.ErrorIs(t, ro.SaveDocument(ctx, core.Document{ID: "other", Markdown: "y"}), core.ErrReadOnly)
}
