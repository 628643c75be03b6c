package settings

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"quicknginx/backend/domain"
	"quicknginx/backend/repository/events"
	"quicknginx/backend/service/privilege"
)

// UpdateResult 路径更新结果。
//
// 权限初始化失败不回滚路径（与启动时一致，只记录并上报）。
type UpdateResult struct {
	Paths          domain.Paths `json:"paths"`
	BootstrapError string       `json:"bootstrapError,omitempty"`
}

// Manager 持有当前 nginx 路径。
//
// 路径只在内存中，重启后回到配置默认值。并发更新由 lifecycle.Coordinator 串行化。
type Manager struct {
	mu    sync.RWMutex
	paths domain.Paths

	exec privilege.Executor
	bus  *events.Bus
}

// NewManager 创建路径管理器；exec 为 nil 时跳过权限初始化
func NewManager(initial domain.Paths, exec privilege.Executor, bus *events.Bus) *Manager {
	return &Manager{paths: initial, exec: exec, bus: bus}
}

// Paths 返回当前路径快照
func (m *Manager) Paths() domain.Paths {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Resolve 计算更新后的路径并校验存在性，不提交。
// 空字段沿用当前值。
func (m *Manager) Resolve(bin, conf string) (domain.Paths, error) {
	cur := m.Paths()
	bin = strings.TrimSpace(bin)
	conf = strings.TrimSpace(conf)
	if bin == "" {
		bin = cur.Bin
	}
	if conf == "" {
		conf = cur.Conf
	}
	next := domain.DerivePaths(bin, conf)

	if err := mustExist("bin", next.Bin); err != nil {
		return domain.Paths{}, err
	}
	if err := mustExist("conf", next.Conf); err != nil {
		return domain.Paths{}, err
	}
	return next, nil
}

// Update 校验并提交新路径，然后重新执行权限初始化
func (m *Manager) Update(ctx context.Context, bin, conf string) (UpdateResult, error) {
	next, err := m.Resolve(bin, conf)
	if err != nil {
		return UpdateResult{}, err
	}

	m.mu.Lock()
	m.paths = next
	m.mu.Unlock()
	log.Printf("[Settings] nginx 路径已更新: bin=%s conf=%s", next.Bin, next.Conf)

	if m.bus != nil {
		m.bus.Publish(events.PathsChanged{Paths: next})
	}

	res := UpdateResult{Paths: next}
	if err := m.Bootstrap(ctx); err != nil {
		res.BootstrapError = err.Error()
	}
	return res, nil
}

// Bootstrap 以提升的权限确保主配置与二进制归当前用户所有。
// 失败只记录日志，调用方决定是否上报。
func (m *Manager) Bootstrap(ctx context.Context) error {
	if m.exec == nil {
		return nil
	}
	p := m.Paths()
	if err := mustExist("bin", p.Bin); err != nil {
		log.Printf("[Settings] nginx 未安装，跳过权限初始化: %v", err)
		return fmt.Errorf("nginx is not installed: %w", err)
	}
	if err := privilege.Bootstrap(ctx, m.exec, p); err != nil {
		log.Printf("[Settings] 权限初始化失败: %v", err)
		return err
	}
	return nil
}

func mustExist(field, path string) error {
	if path == "" {
		return &ValidationError{Field: field, Path: path}
	}
	if _, err := os.Stat(path); err != nil {
		return &ValidationError{Field: field, Path: path}
	}
	return nil
}
