package fragment

import (
	"errors"
	"fmt"
)

// ErrorKind 配置错误类别
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindMarkerNotFound   ErrorKind = "marker_not_found"
	KindUnknownFragment  ErrorKind = "unknown_fragment"
)

// 错误定义（用于 errors.Is）
var (
	ErrNotFound         = errors.New("config file not found")
	ErrPermissionDenied = errors.New("config file permission denied")
	ErrMarkerNotFound   = errors.New("marker line not found in config file")
	ErrUnknownFragment  = errors.New("unknown fragment")
)

// ConfigError 主配置文件读写错误
type ConfigError struct {
	Kind ErrorKind
	Path string
	// Detail 附加信息（标记行内容、片段名等）
	Detail string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "config error"
	}
	msg := e.sentinel().Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ConfigError) sentinel() error {
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindMarkerNotFound:
		return ErrMarkerNotFound
	case KindUnknownFragment:
		return ErrUnknownFragment
	default:
		return errors.New("config error")
	}
}

func (e *ConfigError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Cause}
}
