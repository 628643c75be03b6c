package nginx

import (
	"errors"
	"fmt"
	"strings"
)

// 错误定义
var (
	ErrLaunchFailed     = errors.New("nginx launch failed")
	ErrStopFailed       = errors.New("nginx stop failed")
	ErrReloadFailed     = errors.New("nginx reload failed")
	ErrConfigTestFailed = errors.New("nginx config test failed")
)

// Op 进程操作
type Op string

const (
	OpStart  Op = "start"
	OpStop   Op = "stop"
	OpReload Op = "reload"
	OpTest   Op = "test"
)

// ProcessError 携带 nginx 输出的操作错误
type ProcessError struct {
	Op     Op
	Output string
	Cause  error
}

func (e *ProcessError) sentinel() error {
	switch e.Op {
	case OpStart:
		return ErrLaunchFailed
	case OpStop:
		return ErrStopFailed
	case OpReload:
		return ErrReloadFailed
	case OpTest:
		return ErrConfigTestFailed
	default:
		return errors.New("nginx command failed")
	}
}

func (e *ProcessError) Error() string {
	if e == nil {
		return "nginx command failed"
	}
	msg := e.sentinel().Error()
	if out := strings.TrimSpace(e.Output); out != "" {
		msg = fmt.Sprintf("%s: %s", msg, out)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	return msg
}

func (e *ProcessError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Cause}
}
