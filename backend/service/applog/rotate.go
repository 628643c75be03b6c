package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Rotate 把上一次运行留下的非空日志改名为带时间戳的文件，并清理超过 retain 的旧文件。
//
//	/path/app.log -> /path/app-20260116-235959.log
func Rotate(path string, retain time.Duration) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		return nil
	}

	if st, err := os.Stat(path); err == nil && st.Size() > 0 {
		rotated, err := rotatedName(dir, stem, ext, time.Now())
		if err != nil {
			return err
		}
		if err := os.Rename(path, rotated); err != nil {
			return err
		}
	}

	if retain <= 0 {
		return nil
	}
	return prune(dir, stem, ext, time.Now().Add(-retain))
}

// rotatedName 同一秒内多次轮转时追加序号
func rotatedName(dir, stem, ext string, now time.Time) (string, error) {
	ts := now.Format("20060102-150405")
	name := filepath.Join(dir, fmt.Sprintf("%s-%s%s", stem, ts, ext))
	for i := 1; ; i++ {
		_, err := os.Stat(name)
		if os.IsNotExist(err) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		name = filepath.Join(dir, fmt.Sprintf("%s-%s-%d%s", stem, ts, i, ext))
	}
}

func prune(dir, stem, ext string, cutoff time.Time) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	prefix := stem + "-"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || (ext != "" && !strings.HasSuffix(name, ext)) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}
