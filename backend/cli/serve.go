package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"quicknginx/backend/api"
	"quicknginx/backend/config"
	"quicknginx/backend/domain"
	"quicknginx/backend/metrics"
	"quicknginx/backend/repository/events"
	"quicknginx/backend/service"
	"quicknginx/backend/service/applog"
	"quicknginx/backend/service/fragment"
	"quicknginx/backend/service/lifecycle"
	"quicknginx/backend/service/logs"
	"quicknginx/backend/service/nginx"
	"quicknginx/backend/service/privilege"
	"quicknginx/backend/service/settings"
	"quicknginx/backend/tasks"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动守护进程（HTTP 接口 + 状态轮询）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	def := config.GetDefaultConfig()
	f := cmd.Flags()
	f.String("nginx-bin", def.Nginx.Bin, "nginx 可执行文件")
	f.String("nginx-conf", def.Nginx.Conf, "nginx 主配置文件")
	f.Bool("bootstrap", def.Nginx.Bootstrap, "启动时以管理员权限修正配置文件与二进制的所有者")
	f.String("listen", def.Server.Listen, "HTTP 监听地址")
	f.Bool("dev", false, "开发模式（详细日志）")
	f.String("busy-policy", def.Lifecycle.BusyPolicy, "已有操作执行时的处理方式 (reject|queue)")
	f.Duration("poll", def.Lifecycle.PollInterval, "状态轮询间隔")
	f.String("log-dir", def.Logging.Dir, "本进程日志目录")
	return cmd
}

// daemon 守护进程的各组件
type daemon struct {
	bus         *events.Bus
	settings    *settings.Manager
	coordinator *lifecycle.Coordinator
	facade      *service.Facade
	metrics     *metrics.Metrics
	router      http.Handler
}

// buildDaemon 按配置组装组件；controller 为 nil 时使用真实的 nginx.Controller
func buildDaemon(cfg *config.Config, exec privilege.Executor, controller lifecycle.ProcessController) (*daemon, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("fragment catalog: %w", err)
	}

	bus := events.NewBus()
	mgr := settings.NewManager(cfg.Paths(), exec, bus)
	store := fragment.NewStore(catalog, mgr)
	if controller == nil {
		controller = nginx.NewController(mgr, nginx.WithSettleDelay(cfg.Nginx.SettleDelay))
	}

	ids := make([]string, 0, len(catalog.List()))
	for _, fr := range catalog.List() {
		ids = append(ids, string(fr.ID))
	}
	m := metrics.New(ids)

	coord := lifecycle.New(controller, store, mgr, catalog, lifecycle.Options{
		Policy:  lifecycle.BusyPolicy(cfg.Lifecycle.BusyPolicy),
		Bus:     bus,
		Metrics: m,
	})
	facade := service.NewFacade(coord, store, logs.NewReader(mgr), bus)

	return &daemon{
		bus:         bus,
		settings:    mgr,
		coordinator: coord,
		facade:      facade,
		metrics:     m,
		router:      api.NewRouter(facade, m),
	}, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if cfg.Server.Dev {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	appLog := applog.Open(cfg.AppLogPath(), cfg.Logging.Retain, cfg.Server.Dev)
	defer func() { _ = appLog.Close() }()
	if cfg.Server.Dev {
		log.Println("运行在开发模式 - 显示所有日志")
	}

	exec := privilege.New()
	d, err := buildDaemon(cfg, exec, nil)
	if err != nil {
		return err
	}
	d.facade.SetAppLog(appLog.Path, appLog.StartedAt)

	p := d.settings.Paths()
	log.Printf("[Serve] nginx=%s conf=%s logs=%s", p.Bin, p.Conf, p.LogDir)

	if cfg.Nginx.Bootstrap {
		if err := d.settings.Bootstrap(ctx); err != nil {
			if errors.Is(err, privilege.ErrUnsupported) {
				log.Printf("[Serve] 当前平台不支持权限初始化，跳过")
			} else {
				log.Printf("[Serve] 权限初始化失败（继续运行）: %v", err)
			}
		}
	}

	state := d.coordinator.Init(ctx)
	log.Printf("[Serve] nginx 运行中: %v", state.Running)

	tasks.NewScheduler(d.coordinator, cfg.Lifecycle.PollInterval).Start(ctx)

	srv := newHTTPServer(ctx, cfg.Server.Listen, d.router)

	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		<-ctx.Done()
		// nginx 是独立守护进程，退出时不停止它
		log.Println("收到退出信号，正在关闭 HTTP 服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
		}
	}()

	log.Printf("server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	<-cleanupDone
	return nil
}

// newHTTPServer 请求上下文派生自 ctx：收到退出信号时 /events 长连接随之结束，Shutdown 不必等到超时
func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

// fragmentArg 把可选的位置参数转成片段 id
func fragmentArg(args []string) domain.FragmentID {
	if len(args) == 0 {
		return ""
	}
	return domain.FragmentID(args[0])
}
