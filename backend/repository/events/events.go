package events

import (
	"time"

	"quicknginx/backend/domain"
)

// EventType 事件类型
type EventType string

const (
	// nginx 状态事件（每次变更操作结束、每次后台轮询后发布）
	EventStatusChanged EventType = "nginx.status_changed"

	// 设置事件
	EventPathsChanged EventType = "settings.paths_changed"

	// 通配符事件（用于订阅所有事件）
	EventAll EventType = "*"
)

// Event 事件接口
type Event interface {
	Type() EventType
}

// StatusChanged nginx 状态变化事件
type StatusChanged struct {
	ID             string             `json:"id"`
	Running        bool               `json:"isRunning"`
	ActiveFragment *domain.FragmentID `json:"activeFragment"`
	// Cause 触发来源：start/stop/reload/poll/...
	Cause string    `json:"cause"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

func (e StatusChanged) Type() EventType { return EventStatusChanged }

// PathsChanged 路径设置变更事件
type PathsChanged struct {
	Paths domain.Paths `json:"paths"`
}

func (e PathsChanged) Type() EventType { return EventPathsChanged }
