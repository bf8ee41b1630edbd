package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileProviderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer p.Close()

	data, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected file contents")
	}
	if p.Type() != TypeFile {
		t.Errorf("expected file type, got %s", p.Type())
	}
}

func TestFileProviderLoadMissing(t *testing.T) {
	p, err := NewFileProvider("/nonexistent/cfg.yaml")
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer p.Close()

	if _, err := p.Load(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFileProviderWatchSignalsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("a: 1\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := p.Watch(ctx)
	if err != nil {
		t.Fatalf("failed to start watch: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte("a: 2\n"), 0644); err != nil {
		t.Fatalf("failed to update file: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change signal")
	}
}

func TestFileProviderWatchAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("a: 1\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	if _, err := p.Watch(context.Background()); err == nil {
		t.Fatal("expected error watching a closed provider")
	}
}
