package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, f *os.File, lines string) {
	t.Helper()
	_, err := f.WriteString(lines)
	require.NoError(t, err)
	require.NoError(t, f.Sync())
}

func startTailer(t *testing.T, path string, fromStart bool) *Tailer {
	t.Helper()

	tailer := NewTailer(path, fromStart, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go tailer.Start(ctx)
	// Let the watcher attach before the test writes anything.
	time.Sleep(100 * time.Millisecond)
	return tailer
}

func expectLine(t *testing.T, tailer *Tailer, want string) {
	t.Helper()
	select {
	case got := <-tailer.Lines():
		assert.Equal(t, want, got)
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for line %q", want)
	}
}

func expectNoLine(t *testing.T, tailer *Tailer) {
	t.Helper()
	select {
	case got := <-tailer.Lines():
		t.Fatalf("unexpected line %q", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestTailerEmitsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	writeLines(t, f, "old line\n")
	tailer := startTailer(t, path, false)

	writeLines(t, f, "first\nsecond\n")
	expectLine(t, tailer, "first")
	expectLine(t, tailer, "second")
}

func TestTailerSkipsPreexistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	writeLines(t, f, "before start\n")
	tailer := startTailer(t, path, false)

	expectNoLine(t, tailer)
}

func TestTailerFromStartReadsEverything(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	writeLines(t, f, "preexisting\n")
	tailer := startTailer(t, path, true)

	writeLines(t, f, "appended\n")
	expectLine(t, tailer, "preexisting")
	expectLine(t, tailer, "appended")
}

func TestTailerBuffersPartialLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	tailer := startTailer(t, path, false)

	writeLines(t, f, "partial")
	expectNoLine(t, tailer)

	writeLines(t, f, " completed\n")
	expectLine(t, tailer, "partial completed")
}

func TestTailerIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	other, err := os.Create(filepath.Join(dir, "other.log"))
	require.NoError(t, err)
	defer other.Close()

	tailer := startTailer(t, path, false)

	writeLines(t, other, "noise\n")
	expectNoLine(t, tailer)

	writeLines(t, f, "signal\n")
	expectLine(t, tailer, "signal")
}
