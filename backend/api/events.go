package api

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"quicknginx/backend/repository/events"
)

const sseKeepAlive = 15 * time.Second

// streamEvents 以 SSE 推送状态变化（event: status）。连接建立后先推一次当前快照。
func (r *Router) streamEvents(c *gin.Context) {
	ch := make(chan events.StatusChanged, 16)
	cancel := r.service.SubscribeStatus(func(ev events.StatusChanged) {
		select {
		case ch <- ev:
		default:
			// 慢消费者丢弃中间状态，下一次事件仍是完整快照
		}
	})
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	snap := r.service.Snapshot()
	c.SSEvent("status", events.StatusChanged{
		Running:        snap.Running,
		ActiveFragment: snap.ActiveFragment,
		Cause:          "snapshot",
		At:             snap.CheckedAt,
	})
	c.Writer.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-ch:
			c.SSEvent("status", ev)
			return true
		case t := <-keepAlive.C:
			c.SSEvent("ping", t.Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
