//go:build darwin

package privilege

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
)

type osascriptExecutor struct{}

// New 返回当前平台的提权执行器（darwin: osascript 管理员授权）
func New() Executor { return osascriptExecutor{} }

func (osascriptExecutor) Exec(ctx context.Context, cmd string) (string, error) {
	var c *exec.Cmd
	if os.Geteuid() == 0 {
		c = exec.CommandContext(ctx, "sh", "-c", cmd)
	} else {
		script := `do shell script "` + appleScriptEscape(cmd) + `" with administrator privileges`
		c = exec.CommandContext(ctx, "osascript", "-e", script)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return stdout.String(), &Error{Cmd: cmd, Output: stderr.String(), Cause: err}
	}
	return stdout.String(), nil
}

func appleScriptEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
