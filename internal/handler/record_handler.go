// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fmt"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/model"
	"mockinterview-go/internal/service"
	"mockinterview-go/pkg/log"
	"mockinterview-go/pkg/progressstream"
)

// RecordHandler 负责处理生活记录（생기부）上传与查询相关的 API 请求。
type RecordHandler struct {
	recordService service.RecordService
	progress      *progressstream.Bus
}

// NewRecordHandler 创建一个新的 RecordHandler 实例。
func NewRecordHandler(recordService service.RecordService, progress *progressstream.Bus) *RecordHandler {
	return &RecordHandler{recordService: recordService, progress: progress}
}

// Progress 以 SSE 推送某条记录摄取流水线的实时进度（§4.4，job id 为 "ingest:<recordId>"）。
func (h *RecordHandler) Progress(c *gin.Context) {
	recordID := c.Param("recordId")
	c.Params = append(c.Params, gin.Param{Key: "jobId", Value: fmt.Sprintf("ingest:%s", recordID)})
	h.progress.Handler("jobId")(c)
}

func currentUser(c *gin.Context) (*model.User, bool) {
	u, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := u.(*model.User)
	return user, ok
}

// Upload 处理生活记录 PDF 上传请求，创建记录并投递摄取任务。
func (h *RecordHandler) Upload(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少标题"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少文件"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法打开上传文件"})
		return
	}
	defer file.Close()

	record, err := h.recordService.Upload(c.Request.Context(), user.ID, title, file, fileHeader.Size)
	if err != nil {
		log.Warnf("RecordHandler.Upload: failed for user %d: %v", user.ID, err)
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "생기부 업로드 성공",
		"data":    record,
	})
}

// Get 返回一条记录的状态（供前端轮询摄取进度时对照）。
func (h *RecordHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	recordID, err := strconv.ParseUint(c.Param("recordId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 record_id"})
		return
	}

	record, err := h.recordService.Get(uint(recordID), user.ID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "조회 성공", "data": record})
}

// List 返回当前用户的全部记录。
func (h *RecordHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	records, err := h.recordService.ListByUser(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "记录列表获取失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "조회 성공", "data": records})
}

// Delete 删除一条记录的数据库行及其 PDF 对象；该记录已持久化的分块、
// 题目集与面试会话不随之删除。
func (h *RecordHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	recordID, err := strconv.ParseUint(c.Param("recordId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 record_id"})
		return
	}
	if err := h.recordService.Delete(uint(recordID), user.ID); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "삭제 성공"})
}
