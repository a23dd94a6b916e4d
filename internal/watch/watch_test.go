package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("no change callback within %v", timeout)
	}
}

func TestWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triage.prompt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: a\n"), 0o644))

	changed := make(chan struct{}, 1)
	w, err := New([]string{path}, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, WithDebounce(30*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("name: b\n"), 0o644))
	waitFor(t, changed, 3*time.Second)
}

func TestWatcherTriggersOnCreate(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.prompt.yaml")
	require.NoError(t, os.WriteFile(existing, []byte("name: a\n"), 0o644))

	changed := make(chan struct{}, 1)
	w, err := New([]string{existing}, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, WithDebounce(30*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	w.Start()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.prompt.yml"), []byte("name: n\n"), 0o644))
	waitFor(t, changed, 3*time.Second)
}

func TestWatcherDebounceCollapsesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "burst.prompt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: a\n"), 0o644))

	var calls int64
	w, err := New([]string{path}, func() {
		atomic.AddInt64(&calls, 1)
	}, WithDebounce(150*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	w.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("name: b\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&calls) == 1
	}, 3*time.Second, 20*time.Millisecond)

	// Settled: no further callbacks may arrive.
	time.Sleep(300 * time.Millisecond)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.prompt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: a\n"), 0o644))

	var calls int64
	w, err := New([]string{path}, func() {
		atomic.AddInt64(&calls, 1)
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	w.Start()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt64(&calls))
}

func TestNewWatcherErrors(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)

	missing := filepath.Join(t.TempDir(), "missing", "x.prompt.yaml")
	_, err = New([]string{missing}, func() {})
	require.Error(t, err)
}

func TestWatcherCloseStopsPendingTimer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.prompt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: a\n"), 0o644))

	var calls int64
	w, err := New([]string{path}, func() {
		atomic.AddInt64(&calls, 1)
	}, WithDebounce(200*time.Millisecond))
	require.NoError(t, err)
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("name: b\n"), 0o644))
	// Close before the debounce period elapses.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Close())

	time.Sleep(400 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt64(&calls))
}

func TestUniqueDirs(t *testing.T) {
	dirs := uniqueDirs([]string{
		filepath.Join("suites", "a.prompt.yaml"),
		filepath.Join("suites", "b.prompt.yaml"),
		"root.prompt.yaml",
	})
	require.Equal(t, []string{".", "suites"}, dirs)
}
