package progressstream

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"mockinterview-go/pkg/log"
)

// Handler 返回一个 Gin 处理函数，将 jobID 参数对应的进度事件以
// text/event-stream 形式推送给客户端，直至收到 Done 事件或客户端断开连接。
func (b *Bus) Handler(jobIDParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param(jobIDParam)
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "missing job id"})
			return
		}

		events, cancel := b.Subscribe(jobID)
		defer cancel()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		c.Stream(func(w io.Writer) bool {
			select {
			case ev, ok := <-events:
				if !ok {
					return false
				}
				payload, err := json.Marshal(toWireFrame(ev))
				if err != nil {
					log.Errorf("[ProgressStream] marshal event for job %s: %v", jobID, err)
					return false
				}
				if err := sse.Encode(w, sse.Event{Event: ev.Stage, Data: string(payload)}); err != nil {
					log.Warnf("[ProgressStream] client for job %s disconnected: %v", jobID, err)
					return false
				}
				return !ev.Done
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
