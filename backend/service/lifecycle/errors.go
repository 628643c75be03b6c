package lifecycle

import (
	"errors"
	"fmt"
)

// ErrBusy 已有变更操作在执行
var ErrBusy = errors.New("another nginx operation is in progress")

// ErrUnknownCommand 命令入口收到不支持的命令
var ErrUnknownCommand = errors.New("unknown command")

func busyError(inflight string) error {
	if inflight == "" {
		return ErrBusy
	}
	return fmt.Errorf("%w: %s", ErrBusy, inflight)
}
