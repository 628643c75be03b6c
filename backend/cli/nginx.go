package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"quicknginx/backend/client"
	"quicknginx/backend/domain"
	"quicknginx/backend/service"
)

// stateView 状态的表格形式
type stateView struct {
	domain.ActiveState
	Busy *bool `json:"busy,omitempty"`
}

func (v stateView) Headers() []string { return []string{"Running", "Fragment", "Checked"} }

func (v stateView) Rows() [][]string {
	frag := string(v.Fragment())
	if frag == "" {
		frag = "-"
	}
	checked := "-"
	if !v.CheckedAt.IsZero() {
		checked = v.CheckedAt.Local().Format(time.DateTime)
	}
	running := strconv.FormatBool(v.Running)
	if v.Busy != nil && *v.Busy {
		running += " (busy)"
	}
	return [][]string{{running, frag, checked}}
}

func newStartCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start [fragment]",
		Short: "启动 nginx；指定片段时先切换主配置的 include",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.printer()
			if err != nil {
				return err
			}
			state, err := opts.client().Start(cmd.Context(), fragmentArg(args))
			if err != nil {
				return err
			}
			return p.Print(stateView{ActiveState: state})
		},
	}
}

func newStopCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "停止 nginx 并移除片段 include",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.printer()
			if err != nil {
				return err
			}
			state, err := opts.client().Stop(cmd.Context())
			if err != nil {
				return err
			}
			return p.Print(stateView{ActiveState: state})
		},
	}
}

func newReloadCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "热加载 nginx 配置（未运行时什么也不做）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.printer()
			if err != nil {
				return err
			}
			state, err := opts.client().Reload(cmd.Context())
			if err != nil {
				return err
			}
			return p.Print(stateView{ActiveState: state})
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "查看 nginx 运行状态与当前片段",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.printer()
			if err != nil {
				return err
			}
			st, err := opts.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			busy := st.Busy
			return p.Print(stateView{ActiveState: st.ActiveState, Busy: &busy})
		},
	}
}

func newTestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "检查 nginx 配置语法 (nginx -t)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().Test(cmd.Context())
			if res.Output != "" {
				_, _ = fmt.Fprintln(opts.out, res.Output)
			}
			return err
		},
	}
}

type fragmentInfo = service.FragmentInfo

type fragmentsView service.FragmentsView

func (v fragmentsView) Headers() []string { return []string{"", "Fragment", "Include"} }

func (v fragmentsView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Fragments))
	for _, f := range v.Fragments {
		mark := ""
		if f.Active {
			mark = "*"
		}
		rows = append(rows, []string{mark, string(f.ID), f.Include})
	}
	return rows
}

func newFragmentsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "fragments",
		Aliases: []string{"ls"},
		Short:   "列出配置片段",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.printer()
			if err != nil {
				return err
			}
			view, err := opts.client().Fragments(cmd.Context())
			if err != nil {
				return err
			}
			if err := p.Print(fragmentsView(view)); err != nil {
				return err
			}
			if p.format == FormatTable && view.FileError != "" {
				_, _ = fmt.Fprintf(opts.err, "读取主配置失败: %s\n", view.FileError)
			}
			return nil
		},
	}
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				_, _ = fmt.Fprintln(opts.out, Version)
				return
			}
			_, _ = fmt.Fprintf(opts.out, "quicknginx %s\n  Commit: %s\n  Built:  %s\n", Version, Commit, Date)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "只显示版本号")
	return cmd
}

// DescribeError 命令行里更友好的错误提示
func DescribeError(err error) string {
	if client.IsBusy(err) {
		return "另一个 nginx 操作正在执行，请稍后重试: " + err.Error()
	}
	return err.Error()
}
