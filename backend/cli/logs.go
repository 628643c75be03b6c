package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"quicknginx/backend/client"
	"quicknginx/backend/service/logs"
)

const followInterval = time.Second

type entriesView []logs.Entry

func (v entriesView) Headers() []string { return []string{"Time", "Line"} }

func (v entriesView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, e := range v {
		rows = append(rows, []string{e.Timestamp, e.Content})
	}
	return rows
}

func newLogsCommand(opts *rootOptions) *cobra.Command {
	var (
		limit    int
		follow   bool
		truncate bool
	)
	cmd := &cobra.Command{
		Use:       "logs [access|error|app]",
		Short:     "查看 nginx 日志（默认 error）或守护进程自身日志",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"access", "error", "app"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "error"
			if len(args) == 1 {
				kind = args[0]
			}
			c := opts.client()
			ctx := cmd.Context()

			if kind == "app" {
				if truncate {
					return fmt.Errorf("app 日志不能清空")
				}
				return followAppLog(ctx, c, opts.out, follow)
			}

			k, err := logs.ParseKind(kind)
			if err != nil {
				return err
			}
			if truncate {
				if err := c.ClearLog(ctx, k); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(opts.out, "已清空 %s 日志\n", k)
				return nil
			}
			if follow {
				return followNginxLog(ctx, c, k, opts.out)
			}

			p, err := opts.printer()
			if err != nil {
				return err
			}
			entries, err := c.Logs(ctx, k, limit)
			if err != nil {
				return err
			}
			return p.Print(entriesView(entries))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "最多显示的行数（最新的在前，上限 1000）")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "持续输出新增内容")
	cmd.Flags().BoolVar(&truncate, "clear", false, "清空日志文件")
	return cmd
}

// followNginxLog 从文件末尾开始持续输出
func followNginxLog(ctx context.Context, c *client.Client, kind logs.Kind, out io.Writer) error {
	chunk, err := c.LogChunk(ctx, kind, 0)
	if err != nil {
		return err
	}
	since := chunk.End
	return pollChunks(ctx, out, func(ctx context.Context) (logs.Chunk, error) {
		ch, err := c.LogChunk(ctx, kind, since)
		if err == nil {
			since = ch.To
		}
		return ch, err
	})
}

func followAppLog(ctx context.Context, c *client.Client, out io.Writer, follow bool) error {
	var since int64
	next := func(ctx context.Context) (logs.Chunk, error) {
		snap, err := c.AppLogs(ctx, since)
		if err == nil {
			since = snap.To
		}
		return snap.Chunk, err
	}
	if !follow {
		ch, err := next(ctx)
		if err != nil {
			return err
		}
		_, _ = io.WriteString(out, ch.Text)
		return nil
	}
	return pollChunks(ctx, out, next)
}

func pollChunks(ctx context.Context, out io.Writer, next func(context.Context) (logs.Chunk, error)) error {
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		ch, err := next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ch.Lost {
			_, _ = fmt.Fprintln(out, "--- 日志被截断或轮转，从头读取 ---")
		}
		if ch.Text != "" {
			_, _ = io.WriteString(out, ch.Text)
		}
		// 一次没读完时立即继续
		if ch.To < ch.End {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
