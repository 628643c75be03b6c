//go:build linux

package privilege

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
)

type pkexecExecutor struct{}

// New 返回当前平台的提权执行器（linux: 已是 root 时直接执行，否则 pkexec）
func New() Executor { return pkexecExecutor{} }

func (pkexecExecutor) Exec(ctx context.Context, cmd string) (string, error) {
	var c *exec.Cmd
	if os.Geteuid() == 0 {
		c = exec.CommandContext(ctx, "sh", "-c", cmd)
	} else {
		pkexecPath, err := exec.LookPath("pkexec")
		if err != nil {
			return "", fmt.Errorf("未找到 pkexec: %w", err)
		}
		log.Printf("[Privilege] 使用 pkexec 提权执行")
		c = exec.CommandContext(ctx, pkexecPath, "sh", "-c", cmd)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return stdout.String(), &Error{Cmd: cmd, Output: stderr.String(), Cause: err}
	}
	return stdout.String(), nil
}
