package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quicknginx/backend/service/logs"
)

func parseSince(c *gin.Context) (int64, bool) {
	var since int64
	if raw := c.Query("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			badRequest(c, errors.New("invalid 'since' parameter: must be a non-negative integer"))
			return 0, false
		}
		since = v
	}
	return since, true
}

func parseKind(c *gin.Context) (logs.Kind, bool) {
	kind, err := logs.ParseKind(c.Param("kind"))
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return kind, true
}

func (r *Router) getAppLogs(c *gin.Context) {
	since, ok := parseSince(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.service.AppLogsSince(since))
}

func (r *Router) getNginxLogs(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			badRequest(c, errors.New("invalid 'limit' parameter"))
			return
		}
		limit = v
	}
	entries, err := r.service.NginxLogs(c.Request.Context(), kind, limit)
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "entries": entries})
}

func (r *Router) getNginxLogChunk(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	since, ok := parseSince(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.service.NginxLogChunk(kind, since))
}

func (r *Router) clearNginxLog(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	if err := r.service.ClearNginxLog(c.Request.Context(), kind); err != nil {
		r.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
