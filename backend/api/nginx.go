package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quicknginx/backend/domain"
)

type commandRequest struct {
	Command  string `json:"command" binding:"required,oneof=start stop reload status"`
	Fragment string `json:"fragment" binding:"omitempty,excludesall=/;"`
}

type startRequest struct {
	Fragment string `json:"fragment" binding:"omitempty,excludesall=/;"`
}

type statusResponse struct {
	domain.ActiveState
	Busy bool `json:"busy"`
}

func (r *Router) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		ActiveState: r.service.Status(c.Request.Context()),
		Busy:        r.service.Busy(),
	})
}

// postCommand 命令入口：响应体总是 CommandResponse
func (r *Router) postCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.CommandResponse{Success: false, Error: err.Error()})
		return
	}
	resp, err := r.service.Execute(opContext(c), domain.CommandRequest{
		Command:  domain.Command(req.Command),
		Fragment: domain.FragmentID(strings.TrimSpace(req.Fragment)),
	})
	c.JSON(statusFor(err), resp)
}

func (r *Router) startNginx(c *gin.Context) {
	var req startRequest
	// 空 body 表示不切换片段
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err)
			return
		}
	}
	if frag := c.Query("fragment"); frag != "" && req.Fragment == "" {
		req.Fragment = frag
	}
	if err := r.service.Start(opContext(c), domain.FragmentPtr(domain.FragmentID(strings.TrimSpace(req.Fragment)))); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.service.Snapshot())
}

func (r *Router) stopNginx(c *gin.Context) {
	if err := r.service.Stop(opContext(c)); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.service.Snapshot())
}

func (r *Router) reloadNginx(c *gin.Context) {
	if err := r.service.Reload(opContext(c)); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.service.Snapshot())
}

func (r *Router) testNginx(c *gin.Context) {
	out, err := r.service.TestConfig(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "output": out, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "output": out})
}

func (r *Router) listFragments(c *gin.Context) {
	c.JSON(http.StatusOK, r.service.Fragments(c.Request.Context()))
}

type pathsRequest struct {
	Bin  string `json:"bin" binding:"required_without=Conf"`
	Conf string `json:"conf" binding:"required_without=Bin"`
}

func (r *Router) getPaths(c *gin.Context) {
	c.JSON(http.StatusOK, r.service.Paths())
}

func (r *Router) updatePaths(c *gin.Context) {
	var req pathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.New("bin or conf is required"))
		return
	}
	res, err := r.service.UpdatePaths(opContext(c), req.Bin, req.Conf)
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
