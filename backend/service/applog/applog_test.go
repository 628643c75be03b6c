package applog

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRotate_RenamesNonEmptyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}

	if err := Rotate(path, 7*24*time.Hour); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected %s to be rotated away", path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "app-") || !strings.HasSuffix(entries[0].Name(), ".log") {
		t.Fatalf("expected a single rotated app-*.log, got %v", entries)
	}
}

func TestRotate_EmptyFileStaysInPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if err := Rotate(path, 0); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected empty log to stay, err=%v", err)
	}
}

func TestRotate_PrunesOldRotatedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	old := filepath.Join(dir, "app-20000101-000000.log")
	if err := os.WriteFile(old, []byte("old"), 0o600); err != nil {
		t.Fatalf("write old rotated: %v", err)
	}
	oldTime := time.Now().Add(-8 * 24 * time.Hour)
	if err := os.Chtimes(old, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes old rotated: %v", err)
	}

	keep := filepath.Join(dir, "app-29990101-000000.log")
	if err := os.WriteFile(keep, []byte("keep"), 0o600); err != nil {
		t.Fatalf("write keep rotated: %v", err)
	}
	other := filepath.Join(dir, "nginx-20000101-000000.log")
	if err := os.WriteFile(other, []byte("other"), 0o600); err != nil {
		t.Fatalf("write other: %v", err)
	}
	if err := os.Chtimes(other, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes other: %v", err)
	}

	if err := Rotate(path, 7*24*time.Hour); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if _, err := os.Stat(old); err == nil {
		t.Fatalf("expected old rotated log to be pruned")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("expected keep rotated log to remain, err=%v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("expected unrelated log to remain, err=%v", err)
	}
}

// Open 修改全局 log 输出，不并行
func TestOpen_WritesBannerAndLogLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	lf := Open(path, time.Hour, false)
	log.Printf("[Test] hello")
	if err := lf.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if lf.Path != path || lf.StartedAt.IsZero() {
		t.Fatalf("unexpected file handle: %+v", lf)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "----- quicknginx start") || !strings.Contains(text, "[Test] hello") {
		t.Fatalf("unexpected log content:\n%s", text)
	}
}
