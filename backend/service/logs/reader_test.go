package logs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quicknginx/backend/domain"
)

type staticPaths domain.Paths

func (p staticPaths) Paths() domain.Paths { return domain.Paths(p) }

func newTestReader(t *testing.T) (*Reader, string) {
	t.Helper()
	root := t.TempDir()
	paths := domain.DerivePaths(filepath.Join(root, "sbin", "nginx"), filepath.Join(root, "conf", "nginx.conf"))
	if err := os.MkdirAll(paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return NewReader(staticPaths(paths)), paths.LogDir
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	if k, err := ParseKind("ACCESS"); err != nil || k != KindAccess {
		t.Fatalf("ParseKind(ACCESS) = %v, %v", k, err)
	}
	if _, err := ParseKind("debug"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestReader_Entries_NewestFirstWithTimestamps(t *testing.T) {
	t.Parallel()

	r, dir := newTestReader(t)
	content := `127.0.0.1 - - [17/Oct/2026:10:00:00 +0800] "GET / HTTP/1.1" 200
no brackets here
2026/10/17 10:00:02 [error] 123#0: open() failed
`
	if err := os.WriteFile(filepath.Join(dir, "access.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := r.Entries(context.Background(), KindAccess, 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Timestamp != "error" {
		t.Fatalf("expected newest first, got %+v", entries[0])
	}
	if entries[1].Timestamp != UnknownTimestamp {
		t.Fatalf("expected Unknown timestamp, got %+v", entries[1])
	}
	if entries[2].Timestamp != "17/Oct/2026:10:00:00 +0800" {
		t.Fatalf("unexpected timestamp: %+v", entries[2])
	}
}

func TestReader_Entries_CapsAtMax(t *testing.T) {
	t.Parallel()

	r, dir := newTestReader(t)
	var b strings.Builder
	for i := 0; i < MaxEntries+50; i++ {
		fmt.Fprintf(&b, "[%d] line\n", i)
	}
	if err := os.WriteFile(filepath.Join(dir, "error.log"), []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := r.Entries(context.Background(), KindError, 5000)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != MaxEntries {
		t.Fatalf("expected %d entries, got %d", MaxEntries, len(entries))
	}
	if entries[0].Timestamp != fmt.Sprint(MaxEntries+49) {
		t.Fatalf("expected newest line first, got %+v", entries[0])
	}

	few, _ := r.Entries(context.Background(), KindError, 2)
	if len(few) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(few))
	}
}

func TestReader_Entries_MissingFile(t *testing.T) {
	t.Parallel()

	r, _ := newTestReader(t)
	if _, err := r.Entries(context.Background(), KindAccess, 0); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestReader_ClearTruncates(t *testing.T) {
	t.Parallel()

	r, dir := newTestReader(t)
	path := filepath.Join(dir, "error.log")
	if err := os.WriteFile(path, []byte("boom\n"), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Clear(context.Background(), KindError); err != nil {
		t.Fatalf("clear: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() != 0 || st.Mode().Perm() != 0o640 {
		t.Fatalf("expected empty file with same mode, got size=%d mode=%v", st.Size(), st.Mode().Perm())
	}
}

func TestExtractTimestamp(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"[a] b":      "a",
		"x ] y [ z":  UnknownTimestamp,
		"[] empty":   "",
		"only [open": UnknownTimestamp,
	}
	for in, want := range cases {
		if got := extractTimestamp(in); got != want {
			t.Errorf("extractTimestamp(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChunkSince_Incremental(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := ChunkSince(path, 0)
	if c.Text != "hello\n" || c.To != 6 || c.Lost {
		t.Fatalf("unexpected chunk: %+v", c)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("world\n")
	_ = f.Close()

	c = ChunkSince(path, c.To)
	if c.Text != "world\n" || c.From != 6 || c.End != 12 {
		t.Fatalf("unexpected chunk: %+v", c)
	}

	// 截断后 since 超过文件大小，从头读
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	c = ChunkSince(path, 12)
	if !c.Lost || c.Text != "x" {
		t.Fatalf("expected lost chunk from start, got %+v", c)
	}
}

func TestAppLogsSince(t *testing.T) {
	t.Parallel()

	snap := AppLogsSince(filepath.Join(t.TempDir(), "missing.log"), 0, 42, time.Unix(0, 0))
	if snap.Pid != 42 || snap.StartedAt == "" || snap.Error != "" || snap.Text != "" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
