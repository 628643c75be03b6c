package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"quicknginx/backend/client"
	"quicknginx/backend/domain"
	"quicknginx/backend/repository/events"
)

var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

// 消息
type (
	statusMsg    events.StatusChanged
	streamErrMsg struct{ err error }
	opDoneMsg    struct {
		label string
		err   error
	}
)

// watchModel 持续显示 nginx 状态，并提供与托盘菜单相同的快捷操作
type watchModel struct {
	client    *client.Client
	fragments []domain.FragmentID

	spinner   spinner.Model
	connected bool
	state     events.StatusChanged
	pending   string
	message   string
	err       error
}

func newWatchModel(c *client.Client, fragments []domain.FragmentID) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return watchModel{client: c, fragments: fragments, spinner: s}
}

func (m watchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.connected = true
		m.state = events.StatusChanged(msg)
		m.err = nil
		return m, nil

	case streamErrMsg:
		m.connected = false
		m.err = msg.err
		return m, nil

	case opDoneMsg:
		m.pending = ""
		if msg.err != nil {
			m.message = errStyle.Render(msg.label + " 失败: " + DescribeError(msg.err))
		} else {
			m.message = msg.label + " 完成"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
		if m.pending != "" || !m.connected {
			return m, nil
		}
		switch key {
		case "s":
			if m.state.Running {
				return m.run("停止", func(ctx context.Context) error {
					_, err := m.client.Stop(ctx)
					return err
				})
			}
			return m.run("启动", func(ctx context.Context) error {
				_, err := m.client.Start(ctx, "")
				return err
			})
		case "r":
			return m.run("重新加载", func(ctx context.Context) error {
				_, err := m.client.Reload(ctx)
				return err
			})
		}
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			if n := int(key[0] - '1'); n < len(m.fragments) {
				id := m.fragments[n]
				return m.run("启动 "+string(id), func(ctx context.Context) error {
					_, err := m.client.Start(ctx, id)
					return err
				})
			}
		}
	}
	return m, nil
}

func (m watchModel) run(label string, op func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.pending = label
	m.message = ""
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()
		return opDoneMsg{label: label, err: op(ctx)}
	}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("quicknginx"))
	b.WriteString("\n\n")

	switch {
	case !m.connected && m.err != nil:
		b.WriteString(errStyle.Render("连接断开: " + m.err.Error()))
		b.WriteString("\n")
	case !m.connected:
		b.WriteString(m.spinner.View() + " 连接中...\n")
	default:
		if m.state.Running {
			b.WriteString("  状态  " + runningStyle.Render("● 运行中") + "\n")
		} else {
			b.WriteString("  状态  " + stoppedStyle.Render("○ 已停止") + "\n")
		}
		active := domain.FragmentID("")
		if m.state.ActiveFragment != nil {
			active = *m.state.ActiveFragment
		}
		for i, id := range m.fragments {
			line := fmt.Sprintf("  [%d] %s", i+1, id)
			if id == active {
				b.WriteString(activeStyle.Render(line+"  ✓") + "\n")
			} else {
				b.WriteString(line + "\n")
			}
		}
		if !m.state.At.IsZero() {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  更新于 %s (%s)", m.state.At.Local().Format(time.TimeOnly), m.state.Cause)) + "\n")
		}
	}

	b.WriteString("\n")
	if m.pending != "" {
		b.WriteString(m.spinner.View() + " " + m.pending + "...\n")
	} else if m.message != "" {
		b.WriteString(m.message + "\n")
	}
	b.WriteString(dimStyle.Render("s 启动/停止 · r 重新加载 · 1-9 启动对应配置 · q 退出"))
	b.WriteString("\n")
	return b.String()
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "实时显示 nginx 状态（终端状态指示）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			c := opts.client()
			view, err := c.Fragments(ctx)
			if err != nil {
				return err
			}
			ids := make([]domain.FragmentID, 0, len(view.Fragments))
			for _, f := range view.Fragments {
				ids = append(ids, f.ID)
			}

			p := tea.NewProgram(newWatchModel(c, ids), tea.WithContext(ctx), tea.WithInput(opts.in), tea.WithOutput(opts.out))
			go func() {
				err := c.Watch(ctx, func(ev events.StatusChanged) { p.Send(statusMsg(ev)) })
				if ctx.Err() == nil {
					if err == nil {
						err = fmt.Errorf("事件流已关闭")
					}
					p.Send(streamErrMsg{err: err})
				}
			}()

			_, err = p.Run()
			if err != nil && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}
