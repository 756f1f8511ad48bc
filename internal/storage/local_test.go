package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")

	s, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	name := "1700000000123-42.png"
	if err := s.Put(ctx, name, strings.NewReader("imagem"), 6, "image/png"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	obj, err := s.Open(ctx, name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(obj.Body)
	obj.Body.Close()

	if string(data) != "imagem" {
		t.Errorf("content = %q, want %q", data, "imagem")
	}
	if obj.ContentType != "image/png" {
		t.Errorf("content type = %q, want image/png", obj.ContentType)
	}
	if obj.Size != 6 {
		t.Errorf("size = %d, want 6", obj.Size)
	}

	if err := s.Delete(ctx, name); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Open(ctx, name); err != ErrObjectNotFound {
		t.Errorf("Open after delete error = %v, want ErrObjectNotFound", err)
	}
	if err := s.Delete(ctx, name); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
}

func TestLocalStore_NoTempLeftovers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	if err := s.Put(ctx, "1-1.mp3", strings.NewReader("x"), 1, "audio/mpeg"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "1-1.mp3" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	for _, name := range []string{"../secret", "/etc/passwd", "a/b.png", ""} {
		if err := s.Put(ctx, name, strings.NewReader("x"), 1, "image/png"); err != ErrInvalidName {
			t.Errorf("Put(%q) error = %v, want ErrInvalidName", name, err)
		}
		if _, err := s.Open(ctx, name); err != ErrInvalidName {
			t.Errorf("Open(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestLocalStore_Ping(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	s, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping should fail once the directory is gone")
	}
}
