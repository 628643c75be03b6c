package domain

import "time"

// Command 命令入口支持的命令
type Command string

const (
	CommandStart  Command = "start"
	CommandStop   Command = "stop"
	CommandReload Command = "reload"
	CommandStatus Command = "status"
)

// Valid 判断命令是否受支持
func (c Command) Valid() bool {
	switch c {
	case CommandStart, CommandStop, CommandReload, CommandStatus:
		return true
	default:
		return false
	}
}

// ActiveState 对外可见的运行状态。
//
// Running 总是最近一次真实进程扫描的结果；ActiveFragment 只有在最近一次
// 成功的“带片段启动”之后、任何停止之前才非空。
type ActiveState struct {
	Running        bool        `json:"isRunning"`
	ActiveFragment *FragmentID `json:"activeFragment"`
	CheckedAt      time.Time   `json:"checkedAt"`
}

// Fragment 返回当前片段（为空时返回 ""）
func (s ActiveState) Fragment() FragmentID {
	if s.ActiveFragment == nil {
		return ""
	}
	return *s.ActiveFragment
}

// CommandRequest 命令入口请求
type CommandRequest struct {
	Command  Command    `json:"command"`
	Fragment FragmentID `json:"fragment,omitempty"`
}

// CommandResponse 命令入口响应
type CommandResponse struct {
	Success        bool        `json:"success"`
	IsRunning      *bool       `json:"isRunning,omitempty"`
	ActiveFragment *FragmentID `json:"activeFragment,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// FragmentPtr 把非空 id 转为指针，空串返回 nil
func FragmentPtr(id FragmentID) *FragmentID {
	if id == "" {
		return nil
	}
	return &id
}
