// Package applog 管理守护进程自身的日志文件（app.log）。
package applog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// File 已打开的本进程日志
type File struct {
	Path      string
	StartedAt time.Time

	f *os.File
}

// Open 轮转旧日志后打开新的 app.log，并把标准 log 输出同时写到 stderr 与文件。
//
// 打开失败时只记录，进程继续以 stderr 输出运行。
func Open(path string, retain time.Duration, dev bool) *File {
	if dev {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	lf := &File{StartedAt: time.Now()}
	if path == "" {
		return lf
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("[AppLog] 创建日志目录失败: %v", err)
		return lf
	}
	if err := Rotate(path, retain); err != nil {
		log.Printf("[AppLog] 轮转旧日志失败: %v", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		log.Printf("[AppLog] 打开日志文件失败 (%s): %v", path, err)
		return lf
	}

	_, _ = fmt.Fprintf(f, "----- quicknginx start %s pid=%d -----\n", lf.StartedAt.Format(time.RFC3339Nano), os.Getpid())
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.Printf("[AppLog] 写入 %s", path)

	lf.Path = path
	lf.f = f
	return lf
}

// Close 恢复 stderr 输出并关闭文件
func (l *File) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := l.f.Close()
	l.f = nil
	return err
}
