// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/service"
	"mockinterview-go/pkg/progressstream"
)

// QuestionSetHandler 负责处理题目生成与查询相关的 API 请求。
type QuestionSetHandler struct {
	setService service.QuestionSetService
	progress   *progressstream.Bus
}

// NewQuestionSetHandler 创建一个新的 QuestionSetHandler 实例。
func NewQuestionSetHandler(setService service.QuestionSetService, progress *progressstream.Bus) *QuestionSetHandler {
	return &QuestionSetHandler{setService: setService, progress: progress}
}

// Progress 以 SSE 推送某条记录题目生成流水线的实时进度（job id 为 "qgen:<recordId>"）。
func (h *QuestionSetHandler) Progress(c *gin.Context) {
	recordID := c.Param("recordId")
	c.Params = append(c.Params, gin.Param{Key: "jobId", Value: fmt.Sprintf("qgen:%s", recordID)})
	h.progress.Handler("jobId")(c)
}

// GenerateRequest 是请求生成一套面试题目的请求体。
type GenerateRequest struct {
	RecordID      uint   `json:"recordId" binding:"required"`
	TargetSchool  string `json:"targetSchool" binding:"required"`
	TargetMajor   string `json:"targetMajor" binding:"required"`
	InterviewType string `json:"interviewType" binding:"required"`
}

// Generate 处理题目生成请求，投递 Kafka 任务后立即返回（§4.5，异步）。
func (h *QuestionSetHandler) Generate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 요청 본문"})
		return
	}

	if err := h.setService.RequestGeneration(req.RecordID, user.ID, req.TargetSchool, req.TargetMajor, req.InterviewType); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "문항 생성 작업이 접수되었습니다",
	})
}

// Get 返回一套已生成的题目。
func (h *QuestionSetHandler) Get(c *gin.Context) {
	setID, err := strconv.ParseUint(c.Param("setId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 set_id"})
		return
	}
	set, err := h.setService.Get(uint(setID))
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "조회 성공", "data": set})
}

// ListByRecord 返回某条记录下全部已生成的题目集。
func (h *QuestionSetHandler) ListByRecord(c *gin.Context) {
	recordID, err := strconv.ParseUint(c.Param("recordId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 record_id"})
		return
	}
	sets, err := h.setService.ListByRecord(uint(recordID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "문항 세트 조회 실패"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "조회 성공", "data": sets})
}
