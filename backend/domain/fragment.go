package domain

import (
	"fmt"
	"strings"
)

// FragmentID 配置片段标识（例如 yx_main）
type FragmentID string

const (
	DefaultIncludeDir = "./yx_conf"
	DefaultMarker     = "# 这里写对应include的文件"
)

// DefaultFragmentIDs 默认片段列表
var DefaultFragmentIDs = []FragmentID{"yx_main", "yx_h5", "yx_tob", "yx_tob_admin"}

// Fragment 片段及其 include 指令
type Fragment struct {
	ID      FragmentID `json:"id"`
	Include string     `json:"include"`
}

// Catalog 已知片段集合，进程生命周期内不可变。
type Catalog struct {
	includeDir string
	marker     string
	fragments  []Fragment
	byID       map[FragmentID]Fragment
}

// NewCatalog 创建片段目录；ids 为空时使用默认列表。
func NewCatalog(includeDir, marker string, ids []FragmentID) (*Catalog, error) {
	includeDir = strings.TrimRight(strings.TrimSpace(includeDir), "/")
	if includeDir == "" {
		includeDir = DefaultIncludeDir
	}
	marker = strings.TrimSpace(marker)
	if marker == "" {
		marker = DefaultMarker
	}
	if len(ids) == 0 {
		ids = DefaultFragmentIDs
	}

	c := &Catalog{
		includeDir: includeDir,
		marker:     marker,
		byID:       make(map[FragmentID]Fragment, len(ids)),
	}
	for _, id := range ids {
		id = FragmentID(strings.TrimSpace(string(id)))
		if id == "" || strings.ContainsAny(string(id), "/ ;\t") {
			return nil, fmt.Errorf("invalid fragment id %q", id)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("duplicate fragment id %q", id)
		}
		f := Fragment{
			ID:      id,
			Include: fmt.Sprintf("include %s/%s.conf;", includeDir, id),
		}
		c.fragments = append(c.fragments, f)
		c.byID[id] = f
	}
	return c, nil
}

// DefaultCatalog 返回默认片段目录
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultIncludeDir, DefaultMarker, nil)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) IncludeDir() string { return c.includeDir }
func (c *Catalog) Marker() string     { return c.marker }

// List 按声明顺序返回所有片段
func (c *Catalog) List() []Fragment {
	return append([]Fragment(nil), c.fragments...)
}

// Lookup 查找片段
func (c *Catalog) Lookup(id FragmentID) (Fragment, bool) {
	f, ok := c.byID[id]
	return f, ok
}

// Contains 判断片段是否在目录中
func (c *Catalog) Contains(id FragmentID) bool {
	_, ok := c.byID[id]
	return ok
}
