package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestIsTemplate(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"main.yaml", true},
		{"types/VNF.YML", true},
		{".main.yaml.swp", false},
		{".hidden.yaml", false},
		{"README.md", false},
		{"TOSCA.meta", false},
	}
	for _, tt := range tests {
		if got := IsTemplate(tt.name); got != tt.want {
			t.Errorf("IsTemplate(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func runWatcher(t *testing.T, paths []string) (chan []string, context.CancelFunc, chan error) {
	t.Helper()
	batches := make(chan []string, 10)
	w := New(paths, 50*time.Millisecond, func(_ context.Context, changed []string) {
		batches <- changed
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	// let the watches register
	time.Sleep(100 * time.Millisecond)
	return batches, cancel, done
}

func waitBatch(t *testing.T, batches chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
		return nil
	}
}

func TestWatcher_Directory(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	batches, cancel, done := runWatcher(t, []string{dir})

	main := filepath.Join(dir, "main.yaml")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(main, []byte("tosca_definitions_version: tosca_simple_yaml_1_3\n"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	got := waitBatch(t, batches)
	if len(got) != 1 || got[0] != main {
		t.Errorf("batch = %v, want [%s]", got, main)
	}

	sub := filepath.Join(dir, "types")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	nested := filepath.Join(sub, "vnf.yaml")
	if err := os.WriteFile(nested, []byte("node_types: {}\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	got = waitBatch(t, batches)
	if len(got) != 1 || got[0] != nested {
		t.Errorf("batch = %v, want [%s]", got, nested)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestWatcher_SingleFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	target := filepath.Join(dir, "main.yaml")
	if err := os.WriteFile(target, []byte("a: 1\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	batches, cancel, done := runWatcher(t, []string{target})

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b: 1\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.WriteFile(target, []byte("a: 2\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	got := waitBatch(t, batches)
	if len(got) != 1 || got[0] != target {
		t.Errorf("batch = %v, want [%s]", got, target)
	}

	cancel()
	<-done
}

func TestWatcher_MissingPath(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := New([]string{filepath.Join(t.TempDir(), "missing")}, 0, func(context.Context, []string) {})
	if err := w.Run(context.Background()); err == nil {
		t.Error("expected error for missing path")
	}
	if w.debounce != DefaultDebounce {
		t.Errorf("debounce = %v, want %v", w.debounce, DefaultDebounce)
	}
}
