package domain

import (
	"path/filepath"
	"strings"
)

const (
	DefaultBinaryPath = "/usr/local/bin/nginx"
	DefaultConfigPath = "/usr/local/nginx/conf/nginx.conf"
)

// Paths nginx 相关路径（二进制 + 主配置，其余目录由主配置路径推导）
type Paths struct {
	Bin     string `json:"bin"`
	Conf    string `json:"conf"`
	ConfDir string `json:"confDir"`
	LogDir  string `json:"logDir"`
	RunDir  string `json:"runDir"`
}

// DerivePaths 根据二进制与主配置路径生成完整的 Paths。
//
// confDir = dirname(conf)，runDir = dirname(confDir)，logDir = runDir/logs。
// 调用方总是整体替换 Paths，不做字段级更新。
func DerivePaths(bin, conf string) Paths {
	bin = strings.TrimSpace(bin)
	conf = filepath.Clean(strings.TrimSpace(conf))
	confDir := filepath.Dir(conf)
	runDir := filepath.Dir(confDir)
	return Paths{
		Bin:     bin,
		Conf:    conf,
		ConfDir: confDir,
		LogDir:  filepath.Join(runDir, "logs"),
		RunDir:  runDir,
	}
}

// DefaultPaths 返回编译期默认路径
func DefaultPaths() Paths {
	return DerivePaths(DefaultBinaryPath, DefaultConfigPath)
}
