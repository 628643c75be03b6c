// Package config 加载 quicknginx 配置。
//
// 优先级（高到低）：命令行参数、环境变量（QUICKNGINX_*）、配置文件、默认值。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"quicknginx/backend/domain"
)

// EnvPrefix 环境变量前缀，例如 QUICKNGINX_NGINX_BIN
const EnvPrefix = "QUICKNGINX"

// Config quicknginx 配置
type Config struct {
	Nginx     NginxConfig     `mapstructure:"nginx" yaml:"nginx"`
	Fragments FragmentsConfig `mapstructure:"fragments" yaml:"fragments"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle" yaml:"lifecycle"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// NginxConfig nginx 路径与进程控制
type NginxConfig struct {
	// Bin nginx 可执行文件
	Bin string `mapstructure:"bin" validate:"required" yaml:"bin"`
	// Conf 主配置文件，confDir/logDir/runDir 由它推导
	Conf string `mapstructure:"conf" validate:"required" yaml:"conf"`
	// SettleDelay stop 与 start 之间的等待
	SettleDelay time.Duration `mapstructure:"settle_delay" validate:"gte=0" yaml:"settle_delay"`
	// Bootstrap 启动时以提升的权限修正配置文件与二进制的所有者
	Bootstrap bool `mapstructure:"bootstrap" yaml:"bootstrap"`
}

// FragmentsConfig 配置片段目录，启动后不可变
type FragmentsConfig struct {
	IncludeDir string   `mapstructure:"include_dir" validate:"required" yaml:"include_dir"`
	Marker     string   `mapstructure:"marker" validate:"required" yaml:"marker"`
	IDs        []string `mapstructure:"ids" validate:"required,min=1,unique,dive,required,excludesall=/ ;" yaml:"ids"`
}

// LifecycleConfig 操作串行化与后台轮询
type LifecycleConfig struct {
	// BusyPolicy reject: 立即返回 busy；queue: 排队等待
	BusyPolicy   string        `mapstructure:"busy_policy" validate:"oneof=reject queue" yaml:"busy_policy"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0" yaml:"poll_interval"`
}

// ServerConfig HTTP API
type ServerConfig struct {
	Listen          string        `mapstructure:"listen" validate:"required,hostname_port" yaml:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0" yaml:"shutdown_timeout"`
	Dev             bool          `mapstructure:"dev" yaml:"dev"`
}

// LoggingConfig 本进程日志
type LoggingConfig struct {
	// Dir 日志目录，app.log 写在这里
	Dir string `mapstructure:"dir" validate:"required" yaml:"dir"`
	// Retain 轮转后旧日志的保留时长
	Retain time.Duration `mapstructure:"retain" validate:"gte=0" yaml:"retain"`
}

// Paths 返回初始 nginx 路径
func (c *Config) Paths() domain.Paths {
	return domain.DerivePaths(c.Nginx.Bin, c.Nginx.Conf)
}

// Catalog 构建片段目录
func (c *Config) Catalog() (*domain.Catalog, error) {
	ids := make([]domain.FragmentID, 0, len(c.Fragments.IDs))
	for _, id := range c.Fragments.IDs {
		ids = append(ids, domain.FragmentID(id))
	}
	return domain.NewCatalog(c.Fragments.IncludeDir, c.Fragments.Marker, ids)
}

// AppLogPath 本进程日志文件
func (c *Config) AppLogPath() string {
	return filepath.Join(c.Logging.Dir, "app.log")
}

// Load 从配置文件、环境变量与 flags 加载配置。
//
// configPath 为空时在默认目录查找 config.yaml，找不到则只用默认值与环境变量。
// flags 中已注册的 flag 按 "section.key" 名称绑定（例如 --nginx.bin 或由调用方 BindFlag 指定）。
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)
	setDefaults(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// FlagKeys flag 名到配置键的映射
var FlagKeys = map[string]string{
	"nginx-bin":   "nginx.bin",
	"nginx-conf":  "nginx.conf",
	"bootstrap":   "nginx.bootstrap",
	"listen":      "server.listen",
	"dev":         "server.dev",
	"busy-policy": "lifecycle.busy_policy",
	"poll":        "lifecycle.poll_interval",
	"log-dir":     "logging.dir",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验配置
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed on %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if _, err := cfg.Catalog(); err != nil {
		return err
	}
	return nil
}

// SaveConfig 以 YAML 写出配置（init 命令使用）
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(ConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// ConfigDir 配置目录：$XDG_CONFIG_HOME/quicknginx 或 ~/.config/quicknginx
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "quicknginx")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "quicknginx")
}

// DefaultConfigPath 默认配置文件路径
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
