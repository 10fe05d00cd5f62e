package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aios/organizer/internal/template"
)

func TestWatcher_DeliversFileAddedAfterStabilityWindow(t *testing.T) {
	dir := t.TempDir()
	w, err := New(nil, Options{StabilityThreshold: 50 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	tmpl := &template.Template{ID: "docs", BasePath: dir}
	w.Subscribe(tmpl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.txt"), []byte("hello"), 0o600))

	select {
	case ev := <-w.Events():
		require.Equal(t, EventFileAdded, ev.Type)
		require.Equal(t, "report.txt", ev.FileName)
		require.Equal(t, tmpl, ev.Template)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for FileAdded event")
	}
}

func TestWatcher_SuppressesHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New(nil, Options{StabilityThreshold: 30 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	tmpl := &template.Template{ID: "docs", BasePath: dir}
	w.Subscribe(tmpl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible.txt"), []byte("x"), 0o600))

	select {
	case ev := <-w.Events():
		require.Equal(t, "visible.txt", ev.FileName)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for FileAdded event")
	}
}

func TestWatcher_IgnoresSubdirectoryDepth(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	w, err := New(nil, Options{StabilityThreshold: 30 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	tmpl := &template.Template{ID: "docs", BasePath: dir}
	w.Subscribe(tmpl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.txt"), []byte("x"), 0o600))

	select {
	case ev := <-w.Events():
		require.Equal(t, "top.txt", ev.FileName)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for FileAdded event")
	}
}

func TestWatcher_SubscribeFailureEmitsScopedError(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)

	tmpl := &template.Template{ID: "bad", BasePath: filepath.Join(t.TempDir(), "does-not-exist")}
	w.Subscribe(tmpl)

	select {
	case ev := <-w.Events():
		require.Equal(t, EventError, ev.Type)
		require.Equal(t, tmpl, ev.Template)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Error event")
	}
}
