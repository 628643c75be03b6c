package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"quicknginx/backend/client"
	"quicknginx/backend/domain"
)

// selectFunc 展示列表并返回选中的下标
type selectFunc func(label string, items []string) (int, error)

func promptSelect(in io.ReadCloser, out io.Writer) selectFunc {
	return func(label string, items []string) (int, error) {
		p := promptui.Select{
			Label: label,
			Items: items,
			Size:  12,
			Templates: &promptui.SelectTemplates{
				Label:    "{{ . }}",
				Active:   "> {{ . | cyan }}",
				Inactive: "  {{ . }}",
				Selected: "* {{ . | green }}",
			},
			Stdin:  in,
			Stdout: nopWriteCloser{out},
		}
		i, _, err := p.Run()
		return i, err
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type menuAction struct {
	label string
	run   func(ctx context.Context) (string, error)
	exit  bool
}

// menu 交互式菜单，对应托盘菜单
type menu struct {
	client *client.Client
	out    io.Writer
	sel    selectFunc
}

func newMenuCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "交互式菜单",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := &menu{client: opts.client(), out: opts.out, sel: promptSelect(opts.in, opts.out)}
			return m.run(cmd.Context())
		},
	}
}

func (m *menu) run(ctx context.Context) error {
	for {
		st, err := m.client.Status(ctx)
		if err != nil {
			return err
		}
		view, err := m.client.Fragments(ctx)
		if err != nil {
			return err
		}

		actions := m.actions(st.ActiveState, view.Fragments)
		labels := make([]string, len(actions))
		for i, a := range actions {
			labels[i] = a.label
		}

		i, err := m.sel("请选择要执行的操作", labels)
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}

		action := actions[i]
		if action.exit {
			_, _ = fmt.Fprintln(m.out, "再见！")
			return nil
		}
		msg, err := action.run(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(m.out, "错误: %s\n", DescribeError(err))
			continue
		}
		_, _ = fmt.Fprintln(m.out, msg)
	}
}

func (m *menu) actions(st domain.ActiveState, fragments []fragmentInfo) []menuAction {
	actions := []menuAction{{
		label: "Nginx 状态",
		run: func(ctx context.Context) (string, error) {
			s, err := m.client.Status(ctx)
			if err != nil {
				return "", err
			}
			return describeState(s.ActiveState), nil
		},
	}}

	if st.Running {
		actions = append(actions, menuAction{
			label: "停止 Nginx",
			run: func(ctx context.Context) (string, error) {
				_, err := m.client.Stop(ctx)
				return "Nginx 已停止", err
			},
		}, menuAction{
			label: "重新加载配置",
			run: func(ctx context.Context) (string, error) {
				_, err := m.client.Reload(ctx)
				return "配置已重新加载", err
			},
		})
	} else {
		actions = append(actions, menuAction{
			label: "启动 Nginx",
			run: func(ctx context.Context) (string, error) {
				s, err := m.client.Start(ctx, "")
				return describeState(s), err
			},
		})
	}

	for _, f := range fragments {
		id := f.ID
		label := "启动配置: " + string(id)
		if f.Active {
			label += " ✓"
		}
		actions = append(actions, menuAction{
			label: label,
			run: func(ctx context.Context) (string, error) {
				s, err := m.client.Start(ctx, id)
				return describeState(s), err
			},
		})
	}

	return append(actions, menuAction{label: "退出", exit: true})
}

func describeState(st domain.ActiveState) string {
	if !st.Running {
		return "Nginx 当前状态: 已停止"
	}
	if f := st.Fragment(); f != "" {
		return fmt.Sprintf("Nginx 当前状态: 运行中 (%s)", f)
	}
	return "Nginx 当前状态: 运行中"
}
