// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/base64"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/service"
)

// InterviewHandler 负责处理面试编排相关的 API 请求（§4.6）。
type InterviewHandler struct {
	interviewService service.InterviewService
}

// NewInterviewHandler 创建一个新的 InterviewHandler 实例。
func NewInterviewHandler(interviewService service.InterviewService) *InterviewHandler {
	return &InterviewHandler{interviewService: interviewService}
}

// StartRequest 是发起一场新面试的请求体。
type StartRequest struct {
	RecordID      uint   `json:"recordId" binding:"required"`
	Difficulty    string `json:"difficulty" binding:"required"`
	FirstAnswer   string `json:"firstAnswer" binding:"required"`
	ResponseTimeS int    `json:"responseTimeS"`
}

// Start 打开一个新的 thread，生成首个问题，并用 first_answer 跑完第一回合。
func (h *InterviewHandler) Start(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 요청 본문"})
		return
	}

	resp, err := h.interviewService.Start(c.Request.Context(), user.ID, req.RecordID, req.Difficulty, req.FirstAnswer, req.ResponseTimeS)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "면접이 시작되었습니다", "data": resp})
}

// TurnRequest 是一次面试回合（文字问答）的请求体。
type TurnRequest struct {
	ThreadID      string `json:"threadId" binding:"required"`
	Answer        string `json:"answer" binding:"required"`
	ResponseTimeS int    `json:"responseTimeS"`
}

// Turn 驱动 analyzer → route → generator/wrap_up 的一次完整回合。
func (h *InterviewHandler) Turn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 요청 본문"})
		return
	}

	resp, err := h.interviewService.Turn(c.Request.Context(), req.ThreadID, req.Answer, req.ResponseTimeS)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "답변이 처리되었습니다", "data": resp})
}

// AudioTurnResponse 在 TurnResponse 基础上追加 base64 编码的下一问题音频。
type AudioTurnResponse struct {
	*service.TurnResponse
	NextQuestionAudioB64 string `json:"nextQuestionAudioB64,omitempty"`
}

// TurnAudio 处理音频变体：转写答案 → 正常回合 → 合成下一问题音频（§4.6）。
func (h *InterviewHandler) TurnAudio(c *gin.Context) {
	threadID := c.PostForm("threadId")
	if threadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 thread_id"})
		return
	}
	responseTimeS := 0
	if v := c.PostForm("responseTimeS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			responseTimeS = parsed
		}
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少音频文件"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法打开音频文件"})
		return
	}
	defer file.Close()
	audioBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法读取音频文件"})
		return
	}

	resp, audioOut, err := h.interviewService.TurnAudio(c.Request.Context(), threadID, audioBytes, fileHeader.Header.Get("Content-Type"), responseTimeS)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	payload := AudioTurnResponse{TurnResponse: resp}
	if audioOut != nil {
		payload.NextQuestionAudioB64 = base64.StdEncoding.EncodeToString(audioOut)
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "답변이 처리되었습니다", "data": payload})
}

// ListSessions 返回当前用户的全部面试会话。
func (h *InterviewHandler) ListSessions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	sessions, err := h.interviewService.ListSessions(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "세션 목록 조회 실패"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "조회 성공", "data": sessions})
}

// GetSession 返回单场面试会话（含最终报告与统计）。
func (h *InterviewHandler) GetSession(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	threadID := c.Param("threadId")
	session, err := h.interviewService.GetSession(threadID, user.ID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "조회 성공", "data": session})
}

// Abandon 实现 abandon(thread_id)：用户主动中断一场仍在进行中的面试。
func (h *InterviewHandler) Abandon(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	threadID := c.Param("threadId")
	if err := h.interviewService.Abandon(c.Request.Context(), threadID, user.ID); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "면접이 중단되었습니다"})
}

// GetLogs 实现 get_logs(session_id)：返回从最新 Checkpoint 重放出的有序问答记录。
func (h *InterviewHandler) GetLogs(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	threadID := c.Param("threadId")
	logs, err := h.interviewService.GetLogs(c.Request.Context(), threadID, user.ID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "조회 성공", "data": logs})
}
