package nginx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Output 外部命令输出
type Output struct {
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// Combined 合并 stdout/stderr（用于错误提示）
func (o Output) Combined() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(o.Stdout); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(o.Stderr); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

// Runner 执行外部命令
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner 基于 os/exec 的 Runner
type ExecRunner struct {
	// WaitDelay nginx 守护化后子进程可能仍持有 stdio 管道，超时后不再等待管道关闭。
	WaitDelay time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 2 * time.Second
	}

	err := cmd.Run()
	return Output{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

// ProcessInfo 进程表条目
type ProcessInfo struct {
	PID     int
	Command string
}

// ProcessLister 查询进程表
type ProcessLister interface {
	List(ctx context.Context) ([]ProcessInfo, error)
}

// PSLister 通过 `ps -axo pid=,command=` 查询进程表（linux/darwin 通用）
type PSLister struct {
	Runner Runner
}

func (l PSLister) List(ctx context.Context) ([]ProcessInfo, error) {
	runner := l.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	out, err := runner.Run(ctx, "ps", "-axo", "pid=,command=")
	if err != nil {
		if msg := out.Combined(); msg != "" {
			return nil, fmt.Errorf("list processes: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("list processes: %w", err)
	}
	return parsePS(out.Stdout), nil
}

func parsePS(text string) []ProcessInfo {
	var procs []ProcessInfo
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pidField, rest, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			continue
		}
		procs = append(procs, ProcessInfo{PID: pid, Command: strings.TrimSpace(rest)})
	}
	return procs
}
