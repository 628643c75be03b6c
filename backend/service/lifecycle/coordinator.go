// Package lifecycle 编排 nginx 进程控制与配置片段切换。
//
// Coordinator 是 activeFragment 的唯一来源：所有变更操作经它串行执行，
// 每次结束（无论成功失败）都会重新扫描进程表并发布 StatusChanged。
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quicknginx/backend/domain"
	"quicknginx/backend/repository/events"
	"quicknginx/backend/service/fragment"
	"quicknginx/backend/service/nginx"
	"quicknginx/backend/service/settings"
)

// BusyPolicy 已有操作执行时新请求的处理方式
type BusyPolicy string

const (
	// PolicyReject 立即返回 ErrBusy
	PolicyReject BusyPolicy = "reject"
	// PolicyQueue 排队等待，直到轮到自己或 ctx 取消
	PolicyQueue BusyPolicy = "queue"
)

const recheckTimeout = 5 * time.Second

// ProcessController nginx 进程控制
type ProcessController interface {
	Start(ctx context.Context) (nginx.Output, error)
	Stop(ctx context.Context) (nginx.Output, error)
	Reload(ctx context.Context) (nginx.Output, error)
	Test(ctx context.Context) (nginx.Output, error)
	IsRunning(ctx context.Context) bool
}

// FragmentStore 主配置片段切换
type FragmentStore interface {
	Apply(ctx context.Context, id *domain.FragmentID) error
}

// PathSettings 路径设置
type PathSettings interface {
	Paths() domain.Paths
	Update(ctx context.Context, bin, conf string) (settings.UpdateResult, error)
}

// Recorder 指标记录（*metrics.Metrics 实现）
type Recorder interface {
	ObserveOperation(command string, d time.Duration, err error)
	ObserveBusy(command string)
	ObserveState(running bool, fragment string, at time.Time)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, time.Duration, error) {}
func (nopRecorder) ObserveBusy(string)                            {}
func (nopRecorder) ObserveState(bool, string, time.Time)          {}

// Options Coordinator 可选依赖
type Options struct {
	Policy  BusyPolicy
	Bus     *events.Bus
	Metrics Recorder
}

// Coordinator nginx 生命周期状态机
type Coordinator struct {
	controller ProcessController
	store      FragmentStore
	settings   PathSettings
	catalog    *domain.Catalog
	bus        *events.Bus
	metrics    Recorder
	policy     BusyPolicy

	// slot 单槽信号量，同一时间只允许一个变更操作
	slot chan struct{}

	mu       sync.RWMutex
	state    domain.ActiveState
	inflight string

	// notifyMu 保证扫描与广播成对有序，订阅者收到的最后一条总是最新观测
	notifyMu sync.Mutex
}

// New 创建 Coordinator。初始状态 activeFragment = nil，running 需调用 Init 扫描。
func New(controller ProcessController, store FragmentStore, paths PathSettings, catalog *domain.Catalog, opts Options) *Coordinator {
	c := &Coordinator{
		controller: controller,
		store:      store,
		settings:   paths,
		catalog:    catalog,
		bus:        opts.Bus,
		metrics:    opts.Metrics,
		policy:     opts.Policy,
		slot:       make(chan struct{}, 1),
	}
	if c.metrics == nil {
		c.metrics = nopRecorder{}
	}
	if c.policy != PolicyQueue {
		c.policy = PolicyReject
	}
	return c
}

// Init 启动时扫描一次真实状态并广播
func (c *Coordinator) Init(ctx context.Context) domain.ActiveState {
	c.mu.Lock()
	c.state.ActiveFragment = nil
	c.mu.Unlock()
	state := c.observe(ctx, "init", nil)
	log.Printf("[Lifecycle] 初始状态: running=%v", state.Running)
	return state
}

// Catalog 返回片段目录
func (c *Coordinator) Catalog() *domain.Catalog { return c.catalog }

// Snapshot 返回缓存的最近一次观测结果（不扫描进程表）
func (c *Coordinator) Snapshot() domain.ActiveState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyState(c.state)
}

// Status 扫描真实进程状态，不占用操作槽、不广播
func (c *Coordinator) Status(ctx context.Context) domain.ActiveState {
	running := c.controller.IsRunning(ctx)
	c.mu.RLock()
	state := copyState(c.state)
	c.mu.RUnlock()
	state.Running = running
	state.CheckedAt = time.Now()
	return state
}

// Refresh 重新扫描并广播（后台轮询使用）
func (c *Coordinator) Refresh(ctx context.Context) domain.ActiveState {
	return c.observe(ctx, "poll", nil)
}

// Busy 当前是否有变更操作在执行
func (c *Coordinator) Busy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight != ""
}

// Start 启动 nginx。
//
// id 为 nil 时只启动进程，不改动片段记录；否则先停止正在运行的实例，
// 写入片段后再启动。同一片段重复激活也会完整重启。
func (c *Coordinator) Start(ctx context.Context, id *domain.FragmentID) (err error) {
	release, err := c.acquire(ctx, string(domain.CommandStart))
	if err != nil {
		return err
	}
	defer release()
	begin := time.Now()
	defer func() { c.finish(ctx, string(domain.CommandStart), begin, err) }()

	if id == nil {
		// controller.Start 总会先停止，启动失败时旧片段已不再生效
		if _, err = c.controller.Start(ctx); err != nil {
			c.setFragment(nil)
		}
		return err
	}

	target := *id
	if !c.catalog.Contains(target) {
		return &fragment.ConfigError{Kind: fragment.KindUnknownFragment, Detail: string(target)}
	}

	if c.controller.IsRunning(ctx) {
		log.Printf("[Lifecycle] 切换片段前停止 nginx")
		if _, err = c.controller.Stop(ctx); err != nil {
			return err
		}
	}

	if err = c.store.Apply(ctx, &target); err != nil {
		c.setFragment(nil)
		return err
	}
	if _, err = c.controller.Start(ctx); err != nil {
		c.setFragment(nil)
		return err
	}
	c.setFragment(&target)
	log.Printf("[Lifecycle] 已激活片段: %s", target)
	return nil
}

// Stop 停止 nginx 并清除片段。两步都会执行，错误合并返回；
// 片段记录无论成败都清空。
func (c *Coordinator) Stop(ctx context.Context) (err error) {
	release, err := c.acquire(ctx, string(domain.CommandStop))
	if err != nil {
		return err
	}
	defer release()
	begin := time.Now()
	defer func() { c.finish(ctx, string(domain.CommandStop), begin, err) }()
	defer c.setFragment(nil)

	_, stopErr := c.controller.Stop(ctx)
	applyErr := c.store.Apply(ctx, nil)
	return errors.Join(stopErr, applyErr)
}

// Reload 热加载配置；未运行时为空操作
func (c *Coordinator) Reload(ctx context.Context) (err error) {
	release, err := c.acquire(ctx, string(domain.CommandReload))
	if err != nil {
		return err
	}
	defer release()
	begin := time.Now()
	defer func() { c.finish(ctx, string(domain.CommandReload), begin, err) }()

	if !c.controller.IsRunning(ctx) {
		log.Printf("[Lifecycle] nginx 未运行，忽略 reload")
		return nil
	}
	_, err = c.controller.Reload(ctx)
	return err
}

// Test 检查配置语法，返回 nginx 输出
func (c *Coordinator) Test(ctx context.Context) (string, error) {
	out, err := c.controller.Test(ctx)
	return out.Combined(), err
}

// Paths 返回当前路径
func (c *Coordinator) Paths() domain.Paths { return c.settings.Paths() }

// UpdatePaths 与变更操作串行地更新路径
func (c *Coordinator) UpdatePaths(ctx context.Context, bin, conf string) (res settings.UpdateResult, err error) {
	release, err := c.acquire(ctx, "paths")
	if err != nil {
		return settings.UpdateResult{}, err
	}
	defer release()
	begin := time.Now()
	defer func() { c.finish(ctx, "paths", begin, err) }()

	return c.settings.Update(ctx, bin, conf)
}

// Execute 命令入口。响应总是带上最近一次观测到的状态；error 供调用方映射状态码。
func (c *Coordinator) Execute(ctx context.Context, req domain.CommandRequest) (domain.CommandResponse, error) {
	var err error
	switch req.Command {
	case domain.CommandStatus:
		state := c.Status(ctx)
		return response(state, nil), nil
	case domain.CommandStart:
		err = c.Start(ctx, domain.FragmentPtr(req.Fragment))
	case domain.CommandStop:
		err = c.Stop(ctx)
	case domain.CommandReload:
		err = c.Reload(ctx)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
	}
	return response(c.Snapshot(), err), err
}

func response(state domain.ActiveState, err error) domain.CommandResponse {
	running := state.Running
	resp := domain.CommandResponse{
		Success:        err == nil,
		IsRunning:      &running,
		ActiveFragment: state.ActiveFragment,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (c *Coordinator) acquire(ctx context.Context, command string) (func(), error) {
	select {
	case c.slot <- struct{}{}:
		return c.enter(command), nil
	default:
	}

	if c.policy != PolicyQueue {
		c.mu.RLock()
		inflight := c.inflight
		c.mu.RUnlock()
		c.metrics.ObserveBusy(command)
		log.Printf("[Lifecycle] 拒绝 %s: %s 正在执行", command, inflight)
		return nil, busyError(inflight)
	}

	select {
	case c.slot <- struct{}{}:
		return c.enter(command), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) enter(command string) func() {
	c.mu.Lock()
	c.inflight = command
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.inflight = ""
		c.mu.Unlock()
		<-c.slot
	}
}

// finish 每个变更操作的收尾：重新扫描、记录指标、广播
func (c *Coordinator) finish(ctx context.Context, command string, begin time.Time, err error) {
	c.metrics.ObserveOperation(command, time.Since(begin), err)
	if err != nil {
		log.Printf("[Lifecycle] %s 失败: %v", command, err)
	}
	c.observe(ctx, command, err)
}

// observe 扫描并同步广播；notifyMu 内完成，不同来源（操作收尾、轮询）的事件按观测顺序送达
func (c *Coordinator) observe(ctx context.Context, cause string, err error) domain.ActiveState {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	state := c.recheck(ctx)
	c.publish(state, cause, err)
	return state
}

func (c *Coordinator) recheck(ctx context.Context) domain.ActiveState {
	// 调用方的 ctx 可能已经取消，状态检查不能因此得到错误的 false
	scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recheckTimeout)
	defer cancel()
	running := c.controller.IsRunning(scanCtx)

	c.mu.Lock()
	c.state.Running = running
	c.state.CheckedAt = time.Now()
	state := copyState(c.state)
	c.mu.Unlock()

	c.metrics.ObserveState(state.Running, string(state.Fragment()), state.CheckedAt)
	return state
}

func (c *Coordinator) setFragment(id *domain.FragmentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == nil {
		c.state.ActiveFragment = nil
		return
	}
	v := *id
	c.state.ActiveFragment = &v
}

func (c *Coordinator) publish(state domain.ActiveState, cause string, err error) {
	if c.bus == nil {
		return
	}
	ev := events.StatusChanged{
		ID:             uuid.NewString(),
		Running:        state.Running,
		ActiveFragment: state.ActiveFragment,
		Cause:          cause,
		At:             state.CheckedAt,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.bus.PublishSync(ev)
}

func copyState(s domain.ActiveState) domain.ActiveState {
	if s.ActiveFragment != nil {
		v := *s.ActiveFragment
		s.ActiveFragment = &v
	}
	return s
}
