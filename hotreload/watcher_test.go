package hotreload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := New(dir, WithDebounce(30*time.Millisecond))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w
}

func TestShaderWriteRaisesOneRequest(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)
	assert.False(t, w.Pending())

	path := filepath.Join(dir, "scene.fs")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("void main() {}\n"), 0o644))
	}

	require.Eventually(t, w.Pending, 5*time.Second, 10*time.Millisecond)
	assert.False(t, w.Pending(), "a burst of writes is one request")
}

func TestNestedDirectoriesAreWatched(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "common")
	require.NoError(t, os.Mkdir(sub, 0o755))
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "color.glsl"), []byte("float x;\n"), 0o644))
	select {
	case <-w.Requests():
	case <-time.After(5 * time.Second):
		t.Fatal("no reload request for nested include")
	}
}

func TestIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.False(t, w.Pending())
}

func TestStartFailsForMissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	require.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
}
