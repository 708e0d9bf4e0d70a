package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/snapshot"
	"github.com/aretw0/marginalia/pkg/telemetry"
)

func TestWordDiff(t *testing.T) {
	parts := snapshot.Diff("the quick fox", "the slow fox")
	assert.Equal(t, "the [-quick-]{+slow+} fox", wordDiff(parts))
}

func TestPrintStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	m.ObserveSave(nil)
	m.ObserveSave(errors.New("disk full"))
	m.ObserveSave(nil)

	var sb strings.Builder
	require.NoError(t, printStats(&sb, reg))
	assert.Equal(t,
		"marginalia_session_saves_total{status=error} 1\n"+
			"marginalia_session_saves_total{status=success} 2\n",
		sb.String())
}

// buildBinary builds the CLI into dir and returns its path.
func buildBinary(t *testing.T, dir string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping CLI build in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not found")
	}
	bin := filepath.Join(dir, "marginalia.exe")
	out, err := exec.Command("go", "build", "-o", bin, ".").CombinedOutput()
	require.NoError(t, err, string(out))
	return bin
}

func run(t *testing.T, dir, bin string, args ...string) string {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "marginalia %v:\n%s", args, out)
	return string(out)
}

func TestCLI(t *testing.T) {
	bin := buildBinary(t, t.TempDir())
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "marginalia.yaml"), []byte("versioning: false\n"), 0644))

	assert.Contains(t, run(t, root, bin, "version"), "marginalia version")
	assert.Contains(t, run(t, root, bin, "init"), "Initialized marginalia root")

	assert.Contains(t, run(t, root, bin, "new", "essay", "--title", "Essay"), "essay")
	assert.Contains(t, run(t, root, bin, "list"), "essay - Essay")
	assert.Contains(t, run(t, root, bin, "show", "essay"), "# Essay")
	assert.Contains(t, run(t, root, bin, "show", "essay", "--format", "text"), "Essay")
	assert.Contains(t, run(t, root, bin, "changes", "essay"), "0 insertions, 0 deletions")

	t.Run("Lock", func(t *testing.T) {
		assert.Contains(t, run(t, root, bin, "lock", "acquire", "essay", "--holder", "alice"), "held by alice")
		assert.Contains(t, run(t, root, bin, "lock", "status", "essay"), "alice")
		run(t, root, bin, "lock", "release", "essay", "--holder", "alice")
		assert.Contains(t, run(t, root, bin, "lock", "status", "essay"), "is free")
	})

	t.Run("Analyze", func(t *testing.T) {
		draft := filepath.Join(root, "draft.txt")
		require.NoError(t, os.WriteFile(draft, []byte("We utilize tools."), 0644))
		assert.Contains(t, run(t, root, bin, "analyze", "--file", draft), "complex-word")
	})

	t.Run("Missing", func(t *testing.T) {
		cmd := exec.Command(bin, "show", "nope")
		cmd.Dir = root
		assert.Error(t, cmd.Run())
	})
}
