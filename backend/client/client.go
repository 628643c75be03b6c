// Package client 是 quicknginx 守护进程 HTTP 接口的客户端，供 CLI 子命令使用。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quicknginx/backend/domain"
	"quicknginx/backend/service"
	"quicknginx/backend/service/logs"
	"quicknginx/backend/service/settings"
)

// DefaultTimeout 普通请求超时（start 包含 settle 等待，留足余量）
const DefaultTimeout = 30 * time.Second

// Client quicknginx API 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New 创建客户端；baseURL 可以是 host:port 或完整 URL
func New(baseURL string) *Client {
	return &Client{
		baseURL:    normalizeBaseURL(baseURL),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithHTTPClient 替换底层 http.Client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	return &Client{baseURL: c.baseURL, httpClient: hc}
}

// BaseURL 返回规范化后的服务地址
func (c *Client) BaseURL() string { return c.baseURL }

func normalizeBaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	return raw
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		// 命令入口的失败响应同样携带状态，照常解码给调用方
		if result != nil && len(respBody) > 0 {
			_ = json.Unmarshal(respBody, result)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// StatusResponse GET /status
type StatusResponse struct {
	domain.ActiveState
	Busy bool `json:"busy"`
}

// TestResult POST /nginx/test
type TestResult struct {
	OK     bool   `json:"ok"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Health 检查守护进程是否可达
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// Command 命令入口；失败时同时返回响应体（含当前状态）与 *APIError
func (c *Client) Command(ctx context.Context, req domain.CommandRequest) (domain.CommandResponse, error) {
	var out domain.CommandResponse
	err := c.do(ctx, http.MethodPost, "/command", req, &out)
	return out, err
}

func (c *Client) Start(ctx context.Context, fragment domain.FragmentID) (domain.ActiveState, error) {
	var out domain.ActiveState
	err := c.do(ctx, http.MethodPost, "/nginx/start", map[string]string{"fragment": string(fragment)}, &out)
	return out, err
}

func (c *Client) Stop(ctx context.Context) (domain.ActiveState, error) {
	var out domain.ActiveState
	err := c.do(ctx, http.MethodPost, "/nginx/stop", nil, &out)
	return out, err
}

func (c *Client) Reload(ctx context.Context) (domain.ActiveState, error) {
	var out domain.ActiveState
	err := c.do(ctx, http.MethodPost, "/nginx/reload", nil, &out)
	return out, err
}

func (c *Client) Test(ctx context.Context) (TestResult, error) {
	var out TestResult
	err := c.do(ctx, http.MethodPost, "/nginx/test", nil, &out)
	return out, err
}

func (c *Client) Fragments(ctx context.Context) (service.FragmentsView, error) {
	var out service.FragmentsView
	err := c.do(ctx, http.MethodGet, "/fragments", nil, &out)
	return out, err
}

func (c *Client) Paths(ctx context.Context) (domain.Paths, error) {
	var out domain.Paths
	err := c.do(ctx, http.MethodGet, "/settings/paths", nil, &out)
	return out, err
}

// UpdatePaths 空字段表示保持不变
func (c *Client) UpdatePaths(ctx context.Context, bin, conf string) (settings.UpdateResult, error) {
	var out settings.UpdateResult
	err := c.do(ctx, http.MethodPut, "/settings/paths", map[string]string{"bin": bin, "conf": conf}, &out)
	return out, err
}

func (c *Client) Logs(ctx context.Context, kind logs.Kind, limit int) ([]logs.Entry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/logs/" + url.PathEscape(string(kind))
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Entries []logs.Entry `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Entries, err
}

func (c *Client) LogChunk(ctx context.Context, kind logs.Kind, since int64) (logs.Chunk, error) {
	var out logs.Chunk
	path := fmt.Sprintf("/logs/%s/chunk?since=%d", url.PathEscape(string(kind)), since)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) ClearLog(ctx context.Context, kind logs.Kind) error {
	return c.do(ctx, http.MethodDelete, "/logs/"+url.PathEscape(string(kind)), nil, nil)
}

// AppLogs 守护进程自身日志（从 since 偏移开始的增量）
func (c *Client) AppLogs(ctx context.Context, since int64) (logs.AppLogSnapshot, error) {
	var out logs.AppLogSnapshot
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/app/logs?since=%d", since), nil, &out)
	return out, err
}
