// Package cli 实现 quicknginx 命令行：serve 启动守护进程，其余子命令通过 HTTP 接口控制它。
package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quicknginx/backend/client"
	"quicknginx/backend/config"
)

// 构建时注入
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// ServerEnv 客户端子命令默认连接地址的环境变量
const ServerEnv = "QUICKNGINX_SERVER"

type rootOptions struct {
	server     string
	output     string
	configPath string
	timeout    time.Duration

	out io.Writer
	err io.Writer
	in  io.ReadCloser
}

func (o *rootOptions) client() *client.Client {
	c := client.New(o.server)
	if o.timeout > 0 {
		c = c.WithHTTPClient(&http.Client{Timeout: o.timeout})
	}
	return c
}

func (o *rootOptions) printer() (printer, error) {
	format, err := ParseFormat(o.output)
	if err != nil {
		return printer{}, err
	}
	return printer{out: o.out, format: format}, nil
}

func defaultServer() string {
	if s := strings.TrimSpace(os.Getenv(ServerEnv)); s != "" {
		return s
	}
	return config.DefaultListen
}

// NewRootCommand 构建命令树
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{out: os.Stdout, err: os.Stderr, in: os.Stdin})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "quicknginx",
		Short: "nginx 启停与配置片段切换",
		Long: `quicknginx 管理本机 nginx 的启动、停止、重载，并在主配置中切换 include 的配置片段。

先运行 "quicknginx serve" 启动守护进程，其余命令通过它的 HTTP 接口操作。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.out)
	root.SetErr(opts.err)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.server, "server", defaultServer(), "守护进程地址 (env "+ServerEnv+")")
	pf.StringVarP(&opts.output, "output", "o", "table", "输出格式 (table|json|yaml)")
	pf.StringVar(&opts.configPath, "config", "", "配置文件路径 (默认 "+config.DefaultConfigPath()+")")
	pf.DurationVar(&opts.timeout, "timeout", 0, "请求超时 (0 使用默认值)")

	root.AddCommand(
		newInitCommand(opts),
		newServeCommand(opts),
		newStartCommand(opts),
		newStopCommand(opts),
		newReloadCommand(opts),
		newStatusCommand(opts),
		newTestCommand(opts),
		newFragmentsCommand(opts),
		newPathsCommand(opts),
		newLogsCommand(opts),
		newMenuCommand(opts),
		newWatchCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// Execute 运行命令行
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
