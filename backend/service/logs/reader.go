// Package logs 读取与清空 nginx 的 access/error 日志，以及本进程日志的增量读取。
package logs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"quicknginx/backend/domain"
)

// MaxEntries 单次返回的最大条目数
const MaxEntries = 1000

// UnknownTimestamp 行内没有 [...] 时的时间戳
const UnknownTimestamp = "Unknown"

// Kind 日志类型
type Kind string

const (
	KindAccess Kind = "access"
	KindError  Kind = "error"
)

// ErrInvalidKind 不支持的日志类型
var ErrInvalidKind = errors.New("invalid log type")

// ParseKind 解析日志类型
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAccess:
		return KindAccess, nil
	case KindError:
		return KindError, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Entry 单行日志
type Entry struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// PathsProvider 提供当前 nginx 路径
type PathsProvider interface {
	Paths() domain.Paths
}

// Reader nginx 日志读取器，日志目录随路径设置变化
type Reader struct {
	paths PathsProvider
}

func NewReader(paths PathsProvider) *Reader {
	return &Reader{paths: paths}
}

// Path 返回日志文件路径（<logDir>/<kind>.log）
func (r *Reader) Path(kind Kind) string {
	return filepath.Join(r.paths.Paths().LogDir, string(kind)+".log")
}

// Entries 返回最新的 limit 行（倒序），limit<=0 或超过 MaxEntries 时取 MaxEntries
func (r *Reader) Entries(ctx context.Context, kind Kind, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxEntries {
		limit = MaxEntries
	}
	data, err := os.ReadFile(r.Path(kind))
	if err != nil {
		return nil, err
	}

	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return []Entry{}, nil
	}
	lines := strings.Split(text, "\n")

	entries := make([]Entry, 0, min(limit, len(lines)))
	for i := len(lines) - 1; i >= 0 && len(entries) < limit; i-- {
		line := strings.TrimSuffix(lines[i], "\r")
		entries = append(entries, Entry{Content: line, Timestamp: extractTimestamp(line)})
	}
	return entries, nil
}

// Chunk 增量读取日志
func (r *Reader) Chunk(kind Kind, since int64) Chunk {
	return ChunkSince(r.Path(kind), since)
}

// Clear 清空日志（截断，不删除文件，nginx 持有的文件描述符继续可用）
func (r *Reader) Clear(ctx context.Context, kind Kind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := r.Path(kind)
	if err := os.Truncate(path, 0); err != nil {
		return err
	}
	log.Printf("[Logs] 已清空 %s", path)
	return nil
}

// extractTimestamp 取第一个 '[' 与第一个 ']' 之间的内容
func extractTimestamp(line string) string {
	start := strings.IndexByte(line, '[')
	end := strings.IndexByte(line, ']')
	if start < 0 || end < 0 || end <= start {
		return UnknownTimestamp
	}
	return line[start+1 : end]
}
