package nginx

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"quicknginx/backend/domain"
)

// DefaultSettleDelay 停止与启动之间的等待，给旧实例释放监听端口的时间
const DefaultSettleDelay = time.Second

// PathsProvider 提供当前 nginx 路径
type PathsProvider interface {
	Paths() domain.Paths
}

// Controller 对外部 nginx 进程执行 start/stop/reload，并通过进程表判断运行状态。
//
// Controller 本身不做串行化，调用方（lifecycle.Coordinator）保证同一时间只有一个变更操作。
type Controller struct {
	paths   PathsProvider
	runner  Runner
	lister  ProcessLister
	settle  time.Duration
	selfPID int
}

// Option Controller 选项
type Option func(*Controller)

// WithRunner 替换命令执行器
func WithRunner(r Runner) Option {
	return func(c *Controller) { c.runner = r }
}

// WithProcessLister 替换进程表查询
func WithProcessLister(l ProcessLister) Option {
	return func(c *Controller) { c.lister = l }
}

// WithSettleDelay 设置 stop 与 start 之间的等待
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) { c.settle = d }
}

// NewController 创建进程控制器
func NewController(paths PathsProvider, opts ...Option) *Controller {
	c := &Controller{
		paths:   paths,
		runner:  ExecRunner{},
		settle:  DefaultSettleDelay,
		selfPID: os.Getpid(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.lister == nil {
		c.lister = PSLister{Runner: c.runner}
	}
	if c.settle < 0 {
		c.settle = 0
	}
	return c
}

func configArgs(p domain.Paths, extra ...string) []string {
	args := make([]string, 0, 2+len(extra))
	if p.Conf != "" {
		args = append(args, "-c", p.Conf)
	}
	return append(args, extra...)
}

// Start 启动 nginx。
//
// 先无条件尝试 Stop（“本来就没在运行”不是错误），等待 settle 后再启动；
// 只有最后的启动结果会作为错误返回。例外：预先停止时因权限无法给正在运行的
// master 发信号，继续启动必然端口冲突，直接返回。
func (c *Controller) Start(ctx context.Context) (Output, error) {
	if _, err := c.Stop(ctx); err != nil {
		if isSignalPermissionFailure(err) {
			return Output{}, &ProcessError{Op: OpStart, Cause: err}
		}
		log.Printf("[Nginx] 启动前停止失败（忽略）: %v", err)
	}

	if c.settle > 0 {
		timer := time.NewTimer(c.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Output{}, &ProcessError{Op: OpStart, Cause: ctx.Err()}
		case <-timer.C:
		}
	}

	p := c.paths.Paths()
	out, err := c.runner.Run(ctx, p.Bin, configArgs(p)...)
	if err != nil {
		return out, &ProcessError{Op: OpStart, Output: out.Combined(), Cause: err}
	}
	log.Printf("[Nginx] 已启动: %s", p.Bin)
	return out, nil
}

// Stop 通过 nginx 自身的信号子命令优雅停止（不是直接 kill）
func (c *Controller) Stop(ctx context.Context) (Output, error) {
	p := c.paths.Paths()
	out, err := c.runner.Run(ctx, p.Bin, configArgs(p, "-s", "stop")...)
	if err != nil {
		return out, &ProcessError{Op: OpStop, Output: out.Combined(), Cause: err}
	}
	log.Printf("[Nginx] 已发送 stop 信号")
	return out, nil
}

// Reload 热加载配置（不断开现有连接）
func (c *Controller) Reload(ctx context.Context) (Output, error) {
	p := c.paths.Paths()
	out, err := c.runner.Run(ctx, p.Bin, configArgs(p, "-s", "reload")...)
	if err != nil {
		return out, &ProcessError{Op: OpReload, Output: out.Combined(), Cause: err}
	}
	log.Printf("[Nginx] 已发送 reload 信号")
	return out, nil
}

// Test 检查配置语法（nginx -t）
func (c *Controller) Test(ctx context.Context) (Output, error) {
	p := c.paths.Paths()
	out, err := c.runner.Run(ctx, p.Bin, append([]string{"-t"}, configArgs(p)...)...)
	if err != nil {
		return out, &ProcessError{Op: OpTest, Output: out.Combined(), Cause: err}
	}
	return out, nil
}

// IsRunning 扫描进程表判断 nginx 是否在运行。
//
// 只认进程表：命令执行成功不代表进程还活着（例如配置错误导致立即退出）。
func (c *Controller) IsRunning(ctx context.Context) bool {
	procs, err := c.lister.List(ctx)
	if err != nil {
		log.Printf("[Nginx] 查询进程表失败: %v", err)
		return false
	}
	bin := strings.TrimSpace(c.paths.Paths().Bin)
	if bin == "" {
		return false
	}
	for _, proc := range procs {
		if proc.PID == c.selfPID {
			continue
		}
		if matchesServer(proc.Command, bin) {
			return true
		}
	}
	return false
}

// matchesServer 命令行包含二进制路径，且不是 `-s`/`-t` 这类一次性控制命令
func matchesServer(command, bin string) bool {
	if !strings.Contains(command, bin) {
		return false
	}
	for _, f := range strings.Fields(command) {
		if f == "-s" || f == "-t" || f == "-T" {
			return false
		}
	}
	return true
}

func isSignalPermissionFailure(err error) bool {
	var pe *ProcessError
	if !errors.As(err, &pe) {
		return false
	}
	if errors.Is(pe.Cause, os.ErrPermission) {
		return true
	}
	return strings.Contains(pe.Output, "kill(") && strings.Contains(pe.Output, "Operation not permitted")
}
