package fragment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quicknginx/backend/domain"
)

type staticPaths domain.Paths

func (p staticPaths) Paths() domain.Paths { return domain.Paths(p) }

const sampleConf = `worker_processes  1;

http {
    include       mime.types;

    # 这里写对应include的文件

    server {
        listen 80;
    }
}
`

func newTestStore(t *testing.T, content string) (*Store, string) {
	t.Helper()

	dir := t.TempDir()
	conf := filepath.Join(dir, "conf", "nginx.conf")
	if err := os.MkdirAll(filepath.Dir(conf), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(conf, []byte(content), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	paths := domain.DerivePaths(filepath.Join(dir, "nginx"), conf)
	return NewStore(domain.DefaultCatalog(), staticPaths(paths)), conf
}

func fragmentID(s string) *domain.FragmentID {
	id := domain.FragmentID(s)
	return &id
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func countIncludes(content string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "include ./yx_conf/") {
			n++
		}
	}
	return n
}

func TestStore_Apply_SwitchesFragment(t *testing.T) {
	t.Parallel()

	store, conf := newTestStore(t, sampleConf)
	ctx := context.Background()

	if err := store.Apply(ctx, fragmentID("yx_main")); err != nil {
		t.Fatalf("apply yx_main: %v", err)
	}
	got := readFile(t, conf)
	if !strings.Contains(got, "# 这里写对应include的文件\n        include ./yx_conf/yx_main.conf;\n") {
		t.Fatalf("expected include right after marker, got:\n%s", got)
	}

	if err := store.Apply(ctx, fragmentID("yx_h5")); err != nil {
		t.Fatalf("apply yx_h5: %v", err)
	}
	got = readFile(t, conf)
	if !strings.Contains(got, "include ./yx_conf/yx_h5.conf;") {
		t.Fatalf("expected yx_h5 include, got:\n%s", got)
	}
	if strings.Contains(got, "yx_main.conf") {
		t.Fatalf("expected yx_main include to be removed, got:\n%s", got)
	}
	if n := countIncludes(got); n != 1 {
		t.Fatalf("expected exactly one include, got %d", n)
	}
}

func TestStore_Apply_SameFragmentTwiceIsIdempotent(t *testing.T) {
	t.Parallel()

	store, conf := newTestStore(t, sampleConf)
	ctx := context.Background()

	if err := store.Apply(ctx, fragmentID("yx_tob")); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	first := readFile(t, conf)
	if err := store.Apply(ctx, fragmentID("yx_tob")); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	second := readFile(t, conf)

	if first != second {
		t.Fatalf("expected identical content after re-apply:\n%s\n---\n%s", first, second)
	}
	if n := countIncludes(second); n != 1 {
		t.Fatalf("expected exactly one include, got %d", n)
	}
}

func TestStore_Apply_NoneRemovesAndNeverAdds(t *testing.T) {
	t.Parallel()

	store, conf := newTestStore(t, strings.Replace(sampleConf,
		"# 这里写对应include的文件\n",
		"# 这里写对应include的文件\n    include ./yx_conf/yx_main.conf;\n\tinclude ./yx_conf/legacy.conf;\n", 1))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.Apply(ctx, nil); err != nil {
			t.Fatalf("apply nil #%d: %v", i+1, err)
		}
		if n := countIncludes(readFile(t, conf)); n != 0 {
			t.Fatalf("expected no include after apply nil #%d, got %d", i+1, n)
		}
	}
	if got := readFile(t, conf); got != sampleConf {
		t.Fatalf("expected original content restored, got:\n%s", got)
	}
}

func TestStore_Apply_MarkerMissingLeavesFileUnchanged(t *testing.T) {
	t.Parallel()

	content := "http {\n    include ./yx_conf/yx_main.conf;\n}\n"
	store, conf := newTestStore(t, content)

	err := store.Apply(context.Background(), fragmentID("yx_h5"))
	if !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("expected ErrMarkerNotFound, got %v", err)
	}
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Kind != KindMarkerNotFound || ce.Path != conf {
		t.Fatalf("expected ConfigError with path, got %#v", err)
	}
	if got := readFile(t, conf); got != content {
		t.Fatalf("expected file unchanged, got:\n%s", got)
	}
}

func TestStore_Apply_NoneWithoutMarkerSucceeds(t *testing.T) {
	t.Parallel()

	store, conf := newTestStore(t, "http {\n  include ./yx_conf/yx_h5.conf;\n}\n")
	if err := store.Apply(context.Background(), nil); err != nil {
		t.Fatalf("apply nil: %v", err)
	}
	if got := readFile(t, conf); got != "http {\n}\n" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestStore_Apply_MarkerAtEOFWithoutNewline(t *testing.T) {
	t.Parallel()

	store, conf := newTestStore(t, "http {\n# 这里写对应include的文件")
	if err := store.Apply(context.Background(), fragmentID("yx_main")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := "http {\n# 这里写对应include的文件\n        include ./yx_conf/yx_main.conf;\n"
	if got := readFile(t, conf); got != want {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestStore_Apply_UnknownFragment(t *testing.T) {
	t.Parallel()

	store, conf := newTestStore(t, sampleConf)
	err := store.Apply(context.Background(), fragmentID("nope"))
	if !errors.Is(err, ErrUnknownFragment) {
		t.Fatalf("expected ErrUnknownFragment, got %v", err)
	}
	if got := readFile(t, conf); got != sampleConf {
		t.Fatalf("expected file unchanged")
	}
}

func TestStore_Apply_MissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := domain.DerivePaths("/bin/true", filepath.Join(dir, "missing.conf"))
	store := NewStore(domain.DefaultCatalog(), staticPaths(paths))

	err := store.Apply(context.Background(), fragmentID("yx_main"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected underlying os.ErrNotExist, got %v", err)
	}
}

func TestStore_Apply_UnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	t.Parallel()

	store, conf := newTestStore(t, sampleConf)
	if err := os.Chmod(conf, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(conf, 0o644) })

	err := store.Apply(context.Background(), fragmentID("yx_main"))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestStore_Apply_ReadOnlyDirFallsBackToInPlaceWrite(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	t.Parallel()

	store, conf := newTestStore(t, sampleConf)
	dir := filepath.Dir(conf)
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod dir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	if err := store.Apply(context.Background(), fragmentID("yx_tob_admin")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := readFile(t, conf); !strings.Contains(got, "include ./yx_conf/yx_tob_admin.conf;") {
		t.Fatalf("expected include written in place, got:\n%s", got)
	}
}

func TestOverwriteInPlace_ShrinksToNewContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nginx.conf")
	original := []byte("http {\n    include ./yx_conf/yx_tob_admin.conf;\n}\n")
	if err := os.WriteFile(path, original, 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := overwriteInPlace(path, []byte("http {\n}\n"), original); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := readFile(t, path); got != "http {\n}\n" {
		t.Fatalf("expected stale tail to be cut, got %q", got)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0o640 {
		t.Fatalf("expected mode kept, got %v", st.Mode().Perm())
	}
}

func TestStore_Apply_PreservesFileMode(t *testing.T) {
	t.Parallel()

	store, conf := newTestStore(t, sampleConf)
	if err := os.Chmod(conf, 0o640); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := store.Apply(context.Background(), fragmentID("yx_main")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	st, err := os.Stat(conf)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0o640 {
		t.Fatalf("expected mode 0640, got %v", st.Mode().Perm())
	}
	entries, _ := os.ReadDir(filepath.Dir(conf))
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestStore_Current(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, sampleConf)
	ctx := context.Background()

	cur, err := store.Current(ctx)
	if err != nil || cur != nil {
		t.Fatalf("expected no current fragment, got %v, %v", cur, err)
	}

	if err := store.Apply(ctx, fragmentID("yx_h5")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	cur, err = store.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur == nil || *cur != "yx_h5" {
		t.Fatalf("expected yx_h5, got %v", cur)
	}
}
