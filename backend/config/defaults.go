package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"quicknginx/backend/domain"
)

const (
	DefaultListen          = "127.0.0.1:19080"
	DefaultPollInterval    = 5 * time.Second
	DefaultSettleDelay     = time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogRetain       = 7 * 24 * time.Hour
	DefaultBusyPolicy      = "reject"
)

func defaultFragmentIDs() []string {
	ids := make([]string, 0, len(domain.DefaultFragmentIDs))
	for _, id := range domain.DefaultFragmentIDs {
		ids = append(ids, string(id))
	}
	return ids
}

// setDefaults 注册所有键的默认值；AutomaticEnv 只对已知键生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("nginx.bin", domain.DefaultBinaryPath)
	v.SetDefault("nginx.conf", domain.DefaultConfigPath)
	v.SetDefault("nginx.settle_delay", DefaultSettleDelay)
	v.SetDefault("nginx.bootstrap", true)

	v.SetDefault("fragments.include_dir", domain.DefaultIncludeDir)
	v.SetDefault("fragments.marker", domain.DefaultMarker)
	v.SetDefault("fragments.ids", defaultFragmentIDs())

	v.SetDefault("lifecycle.busy_policy", DefaultBusyPolicy)
	v.SetDefault("lifecycle.poll_interval", DefaultPollInterval)

	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("server.dev", false)

	v.SetDefault("logging.dir", defaultStateDir())
	v.SetDefault("logging.retain", DefaultLogRetain)
}

// ApplyDefaults 补齐零值字段并规整取值
func ApplyDefaults(cfg *Config) {
	cfg.Nginx.Bin = strings.TrimSpace(cfg.Nginx.Bin)
	cfg.Nginx.Conf = strings.TrimSpace(cfg.Nginx.Conf)
	if cfg.Nginx.Bin == "" {
		cfg.Nginx.Bin = domain.DefaultBinaryPath
	}
	if cfg.Nginx.Conf == "" {
		cfg.Nginx.Conf = domain.DefaultConfigPath
	}

	if cfg.Fragments.IncludeDir == "" {
		cfg.Fragments.IncludeDir = domain.DefaultIncludeDir
	}
	if cfg.Fragments.Marker == "" {
		cfg.Fragments.Marker = domain.DefaultMarker
	}
	if len(cfg.Fragments.IDs) == 0 {
		cfg.Fragments.IDs = defaultFragmentIDs()
	}

	cfg.Lifecycle.BusyPolicy = strings.ToLower(strings.TrimSpace(cfg.Lifecycle.BusyPolicy))
	if cfg.Lifecycle.BusyPolicy == "" {
		cfg.Lifecycle.BusyPolicy = DefaultBusyPolicy
	}
	if cfg.Lifecycle.PollInterval == 0 {
		cfg.Lifecycle.PollInterval = DefaultPollInterval
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = defaultStateDir()
	}
}

// GetDefaultConfig 返回全默认配置
func GetDefaultConfig() *Config {
	cfg := &Config{
		Nginx: NginxConfig{SettleDelay: DefaultSettleDelay, Bootstrap: true},
		Logging: LoggingConfig{
			Retain: DefaultLogRetain,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// defaultStateDir $XDG_STATE_HOME/quicknginx 或 ~/.local/state/quicknginx
func defaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "quicknginx")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "quicknginx")
	}
	return filepath.Join(home, ".local", "state", "quicknginx")
}
