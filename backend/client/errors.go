package client

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError 服务端返回的错误响应
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return e.Message
}

// IsBusy 已有操作在执行（409）
func (e *APIError) IsBusy() bool { return e.StatusCode == http.StatusConflict }

// IsNotFound 资源不存在（404）
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsBusy 判断错误链中是否有 409
func IsBusy(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsBusy()
}
