package tasks

import (
	"context"
	"log"
	"time"

	"quicknginx/backend/domain"
)

// StatusRefresher 重新扫描 nginx 状态并广播（lifecycle.Coordinator 实现）
type StatusRefresher interface {
	Refresh(ctx context.Context) domain.ActiveState
}

type Scheduler struct {
	status       StatusRefresher
	pollInterval time.Duration
}

func NewScheduler(status StatusRefresher, pollInterval time.Duration) *Scheduler {
	return &Scheduler{
		status:       status,
		pollInterval: pollInterval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}

	if s.status != nil {
		// 外部崩溃或被手动停止时，下一次轮询会自愈显示状态
		go runWithTicker(ctx, s.pollInterval, "status poll", func(ctx context.Context) {
			s.status.Refresh(ctx)
		})
	}
}

func runWithTicker(ctx context.Context, interval time.Duration, name string, fn func(context.Context)) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	// 启动后先跑一次，避免“等待一个周期才生效”。
	safeRun(ctx, name, fn)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			safeRun(ctx, name, fn)
		}
	}
}

func safeRun(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[tasks] %s panicked: %v", name, r)
		}
	}()
	fn(ctx)
}
