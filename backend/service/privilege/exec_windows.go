//go:build windows

package privilege

import "context"

type unsupportedExecutor struct{}

// New windows 下没有对应的提权方式，需要以管理员身份运行
func New() Executor { return unsupportedExecutor{} }

func (unsupportedExecutor) Exec(context.Context, string) (string, error) {
	return "", ErrUnsupported
}
