// Package privilege 以提升的权限执行一次性的 shell 命令，
// 目前只用于 nginx 配置文件与二进制的权限初始化。
package privilege

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/user"
	"strings"

	"quicknginx/backend/domain"
)

// ErrUnsupported 当前平台没有可用的提权方式
var ErrUnsupported = errors.New("privilege escalation is not supported on this platform")

// Executor 以提升的权限执行一条 shell 命令，返回 stdout
type Executor interface {
	Exec(ctx context.Context, cmd string) (string, error)
}

// ExecutorFunc 函数适配器
type ExecutorFunc func(ctx context.Context, cmd string) (string, error)

func (f ExecutorFunc) Exec(ctx context.Context, cmd string) (string, error) { return f(ctx, cmd) }

// Error 提权命令失败
type Error struct {
	Cmd    string
	Output string
	Cause  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("elevated command failed: %v", e.Cause)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg = fmt.Sprintf("%s: %s", msg, out)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// BootstrapCommand 构建权限初始化命令：
// 确保配置文件存在且属于当前用户，二进制可执行且属于当前用户。
// 配置目录也交给当前用户，片段切换才能走临时文件 + rename 的原子写入。
func BootstrapCommand(p domain.Paths, owner string) string {
	conf := shellQuote(p.Conf)
	confDir := shellQuote(p.ConfDir)
	bin := shellQuote(p.Bin)
	who := shellQuote(owner)
	return strings.Join([]string{
		"touch " + conf,
		"chmod 644 " + conf,
		"chown " + who + " " + conf,
		"chown " + who + " " + confDir,
		"chmod u+w " + confDir,
		"chmod 755 " + bin,
		"chown " + who + " " + bin,
	}, " && ")
}

// Bootstrap 执行权限初始化
func Bootstrap(ctx context.Context, exec Executor, p domain.Paths) error {
	if exec == nil {
		return nil
	}
	owner, err := InvokingUser()
	if err != nil {
		return fmt.Errorf("resolve invoking user: %w", err)
	}
	cmd := BootstrapCommand(p, owner)
	log.Printf("[Privilege] 初始化 nginx 文件权限: owner=%s conf=%s bin=%s", owner, p.Conf, p.Bin)
	if _, err := exec.Exec(ctx, cmd); err != nil {
		return err
	}
	log.Printf("[Privilege] 权限初始化完成")
	return nil
}

// InvokingUser 返回发起操作的真实用户。
//
// 经由 sudo/pkexec 启动时，优先取原始用户，避免把文件 chown 给 root。
func InvokingUser() (string, error) {
	if name := strings.TrimSpace(os.Getenv("SUDO_USER")); name != "" && name != "root" {
		return name, nil
	}
	if uid := strings.TrimSpace(os.Getenv("PKEXEC_UID")); uid != "" {
		if u, err := user.LookupId(uid); err == nil {
			return u.Username, nil
		}
	}
	u, err := user.Current()
	if err != nil {
		if name := strings.TrimSpace(os.Getenv("USER")); name != "" {
			return name, nil
		}
		return "", err
	}
	return u.Username, nil
}

// shellQuote POSIX 单引号转义
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("/._-+:@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
