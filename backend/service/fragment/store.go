package fragment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"quicknginx/backend/domain"
)

// includeIndent 插入 include 行时使用的缩进（与 http 块内常见写法一致）
const includeIndent = "        "

// PathsProvider 提供当前 nginx 路径
type PathsProvider interface {
	Paths() domain.Paths
}

// Store 主配置文件中的片段开关。
//
// 主配置文件里“标记行”之后至多有一行片段 include；Apply 保证这一点与文件原状态无关。
type Store struct {
	catalog *domain.Catalog
	paths   PathsProvider
	pattern *regexp.Regexp
}

// NewStore 创建片段存储
func NewStore(catalog *domain.Catalog, paths PathsProvider) *Store {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	return &Store{
		catalog: catalog,
		paths:   paths,
		pattern: includePattern(catalog.IncludeDir()),
	}
}

func includePattern(includeDir string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*include\s+` + regexp.QuoteMeta(includeDir) + `/([^/\s;]+)\.conf;\s*$`)
}

// Catalog 返回片段目录
func (s *Store) Catalog() *domain.Catalog { return s.catalog }

// Apply 启用指定片段（nil 表示移除所有片段 include）。
//
// 写入是整体替换：标记行缺失等错误发生时文件保持原样。
func (s *Store) Apply(ctx context.Context, id *domain.FragmentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.paths.Paths().Conf

	var include string
	if id != nil {
		f, ok := s.catalog.Lookup(*id)
		if !ok {
			return &ConfigError{Kind: KindUnknownFragment, Path: path, Detail: string(*id)}
		}
		include = f.Include
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return classify(err, path)
	}
	original := string(raw)

	updated, err := s.rewrite(original, include)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return err
	}

	if err := writeWhole(path, []byte(updated), []byte(original)); err != nil {
		return classify(err, path)
	}

	if id != nil {
		log.Printf("[Fragment] 已启用片段 %s: %s", *id, path)
	} else {
		log.Printf("[Fragment] 已清除片段 include: %s", path)
	}
	return nil
}

// rewrite 移除所有片段 include，并在 include 非空时插入到标记行之后
func (s *Store) rewrite(content, include string) (string, error) {
	lines := strings.SplitAfter(content, "\n")

	kept := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		if line == "" {
			continue
		}
		if s.pattern.MatchString(strings.TrimRight(line, "\r\n")) {
			continue
		}
		kept = append(kept, line)
	}

	if include == "" {
		return strings.Join(kept, ""), nil
	}

	marker := s.catalog.Marker()
	for i, line := range kept {
		if strings.TrimSpace(line) != marker {
			continue
		}
		if !strings.HasSuffix(line, "\n") {
			kept[i] = line + "\n"
		}
		out := make([]string, 0, len(kept)+1)
		out = append(out, kept[:i+1]...)
		out = append(out, includeIndent+include+"\n")
		out = append(out, kept[i+1:]...)
		return strings.Join(out, ""), nil
	}

	return "", &ConfigError{Kind: KindMarkerNotFound, Detail: fmt.Sprintf("%q", marker)}
}

// Current 解析主配置文件中当前 include 的片段（仅用于展示，不作为状态来源）
func (s *Store) Current(ctx context.Context) (*domain.FragmentID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.paths.Paths().Conf
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, classify(err, path)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		m := s.pattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		id := domain.FragmentID(m[1])
		return &id, nil
	}
	return nil, nil
}

// writeWhole 优先原子替换；目录不可写时（常见于 root 拥有的 conf 目录）退回整块覆写原文件。
func writeWhole(path string, data, original []byte) error {
	err := writeFileAtomic(path, data, 0)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrPermission) {
		return err
	}
	return overwriteInPlace(path, data, original)
}

// overwriteInPlace 不截断先写：从头覆盖新内容，再截到新长度并 fsync。
// 中途崩溃时文件不会是空的。
func overwriteInPlace(path string, data, original []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		_, _ = f.WriteAt(original, 0)
		_ = f.Truncate(int64(len(original)))
		_ = f.Close()
		return err
	}
	if err := f.Truncate(int64(len(data))); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func classify(err error, path string) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &ConfigError{Kind: KindNotFound, Path: path, Cause: err}
	case errors.Is(err, os.ErrPermission):
		return &ConfigError{Kind: KindPermissionDenied, Path: path, Cause: err}
	default:
		return fmt.Errorf("config file %s: %w", path, err)
	}
}
