package service

import (
	"context"
	"log"
	"os"
	"time"

	"quicknginx/backend/domain"
	"quicknginx/backend/repository/events"
	"quicknginx/backend/service/fragment"
	"quicknginx/backend/service/lifecycle"
	"quicknginx/backend/service/logs"
	"quicknginx/backend/service/settings"
)

// Facade 服务门面（API 聚合层）
type Facade struct {
	lifecycle *lifecycle.Coordinator
	fragments *fragment.Store
	logs      *logs.Reader
	bus       *events.Bus

	appLogPath      string
	appLogStartedAt time.Time
}

// NewFacade 创建门面服务
func NewFacade(coord *lifecycle.Coordinator, store *fragment.Store, reader *logs.Reader, bus *events.Bus) *Facade {
	return &Facade{
		lifecycle: coord,
		fragments: store,
		logs:      reader,
		bus:       bus,
	}
}

func (f *Facade) SetAppLog(path string, startedAt time.Time) {
	f.appLogPath = path
	f.appLogStartedAt = startedAt
}

// ========== nginx ==========

// Status 扫描真实状态
func (f *Facade) Status(ctx context.Context) domain.ActiveState {
	return f.lifecycle.Status(ctx)
}

// Snapshot 最近一次观测到的状态（不扫描）
func (f *Facade) Snapshot() domain.ActiveState {
	return f.lifecycle.Snapshot()
}

// Busy 是否有变更操作在执行
func (f *Facade) Busy() bool {
	return f.lifecycle.Busy()
}

func (f *Facade) Execute(ctx context.Context, req domain.CommandRequest) (domain.CommandResponse, error) {
	return f.lifecycle.Execute(ctx, req)
}

func (f *Facade) Start(ctx context.Context, id *domain.FragmentID) error {
	return f.lifecycle.Start(ctx, id)
}

func (f *Facade) Stop(ctx context.Context) error {
	return f.lifecycle.Stop(ctx)
}

func (f *Facade) Reload(ctx context.Context) error {
	return f.lifecycle.Reload(ctx)
}

// TestConfig nginx -t
func (f *Facade) TestConfig(ctx context.Context) (string, error) {
	return f.lifecycle.Test(ctx)
}

// ========== 片段 ==========

// FragmentInfo 片段及其状态
type FragmentInfo struct {
	ID      domain.FragmentID `json:"id"`
	Include string            `json:"include"`
	Active  bool              `json:"active"`
}

// FragmentsView 片段列表
type FragmentsView struct {
	Fragments []FragmentInfo `json:"fragments"`
	// Active 最近一次成功激活的片段（状态来源）
	Active *domain.FragmentID `json:"active"`
	// InFile 主配置文件当前实际包含的片段（仅用于诊断）
	InFile *domain.FragmentID `json:"inFile"`
	// FileError 读取主配置文件失败时的原因
	FileError string `json:"fileError,omitempty"`
}

func (f *Facade) Fragments(ctx context.Context) FragmentsView {
	state := f.lifecycle.Snapshot()
	view := FragmentsView{Active: state.ActiveFragment}

	for _, fr := range f.lifecycle.Catalog().List() {
		view.Fragments = append(view.Fragments, FragmentInfo{
			ID:      fr.ID,
			Include: fr.Include,
			Active:  state.ActiveFragment != nil && *state.ActiveFragment == fr.ID,
		})
	}

	inFile, err := f.fragments.Current(ctx)
	if err != nil {
		view.FileError = err.Error()
	} else {
		view.InFile = inFile
	}
	return view
}

// ========== 设置 ==========

func (f *Facade) Paths() domain.Paths {
	return f.lifecycle.Paths()
}

func (f *Facade) UpdatePaths(ctx context.Context, bin, conf string) (settings.UpdateResult, error) {
	return f.lifecycle.UpdatePaths(ctx, bin, conf)
}

// ========== 日志 ==========

func (f *Facade) NginxLogs(ctx context.Context, kind logs.Kind, limit int) ([]logs.Entry, error) {
	return f.logs.Entries(ctx, kind, limit)
}

func (f *Facade) NginxLogChunk(kind logs.Kind, since int64) logs.Chunk {
	return f.logs.Chunk(kind, since)
}

func (f *Facade) ClearNginxLog(ctx context.Context, kind logs.Kind) error {
	return f.logs.Clear(ctx, kind)
}

func (f *Facade) AppLogsSince(since int64) logs.AppLogSnapshot {
	return logs.AppLogsSince(f.appLogPath, since, os.Getpid(), f.appLogStartedAt)
}

// ========== 事件 ==========

// SubscribeStatus 订阅状态变化，返回取消函数
func (f *Facade) SubscribeStatus(handler func(events.StatusChanged)) (cancel func()) {
	if f.bus == nil {
		return func() {}
	}
	return f.bus.Subscribe(events.EventStatusChanged, func(e events.Event) {
		ev, ok := e.(events.StatusChanged)
		if !ok {
			log.Printf("[Facade] 未知事件类型: %T", e)
			return
		}
		handler(ev)
	})
}
