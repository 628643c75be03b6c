package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quicknginx/backend/metrics"
	"quicknginx/backend/service"
	"quicknginx/backend/service/fragment"
	"quicknginx/backend/service/lifecycle"
	"quicknginx/backend/service/logs"
	"quicknginx/backend/service/settings"
)

// RequestIDHeader 请求 ID 响应头
const RequestIDHeader = "X-Request-ID"

type Router struct {
	service *service.Facade
	metrics *metrics.Metrics
}

// NewRouter 创建 HTTP 路由；m 为 nil 时 /metrics 返回 404
func NewRouter(svc *service.Facade, m *metrics.Metrics) *gin.Engine {
	r := &Router{service: svc, metrics: m}
	engine := gin.New()
	engine.Use(gin.Recovery())
	r.register(engine)
	return engine
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

func (r *Router) register(engine *gin.Engine) {
	engine.Use(corsMiddleware(), requestIDMiddleware())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})
	engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))

	engine.GET("/status", r.getStatus)
	engine.POST("/command", r.postCommand)
	engine.GET("/events", r.streamEvents)

	nginx := engine.Group("/nginx")
	{
		nginx.POST("/start", r.startNginx)
		nginx.POST("/stop", r.stopNginx)
		nginx.POST("/reload", r.reloadNginx)
		nginx.POST("/test", r.testNginx)
	}

	engine.GET("/fragments", r.listFragments)

	settings := engine.Group("/settings")
	{
		settings.GET("/paths", r.getPaths)
		settings.PUT("/paths", r.updatePaths)
	}

	logGroup := engine.Group("/logs")
	{
		logGroup.GET(":kind", r.getNginxLogs)
		logGroup.GET(":kind/chunk", r.getNginxLogChunk)
		logGroup.DELETE(":kind", r.clearNginxLog)
	}
	engine.GET("/app/logs", r.getAppLogs)
}

// opContext nginx 操作不随客户端断开而中止，避免进程停在半途
func opContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// statusFor 错误到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, lifecycle.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrUnknownCommand),
		errors.Is(err, fragment.ErrUnknownFragment),
		errors.Is(err, settings.ErrPathNotFound),
		errors.Is(err, logs.ErrInvalidKind):
		return http.StatusBadRequest
	case errors.Is(err, fragment.ErrMarkerNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fragment.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) handleError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
