package settings

import (
	"errors"
	"fmt"
)

// ErrPathNotFound 路径不存在
var ErrPathNotFound = errors.New("path not found")

// ValidationError 路径校验失败
type ValidationError struct {
	Field string
	Path  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrPathNotFound, e.Field, e.Path)
}

func (e *ValidationError) Unwrap() error { return ErrPathNotFound }
