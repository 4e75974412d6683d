// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/model"
	"mockinterview-go/internal/orchestrator"
	"mockinterview-go/internal/repository"
)

// TurnResponse 是一次面试回合对外返回的数据（问题 + 评价 + 是否结束）。
type TurnResponse struct {
	ThreadID     string            `json:"threadId,omitempty"`
	NextQuestion string            `json:"nextQuestion"`
	Evaluation   model.Evaluation  `json:"evaluation"`
	IsFinished   bool              `json:"isFinished"`
}

// InterviewService 接口定义了面试编排相关的业务操作（§4.6）。
type InterviewService interface {
	Start(ctx context.Context, userID uint, recordID uint, difficulty string, firstAnswer string, responseTimeS int) (*TurnResponse, error)
	Turn(ctx context.Context, threadID string, answer string, responseTimeS int) (*TurnResponse, error)
	TurnAudio(ctx context.Context, threadID string, audio []byte, mimeType string, responseTimeS int) (*TurnResponse, []byte, error)
	ListSessions(userID uint) ([]model.InterviewSession, error)
	GetSession(threadID string, userID uint) (*model.InterviewSession, error)
	Abandon(ctx context.Context, threadID string, userID uint) error
	GetLogs(ctx context.Context, threadID string, userID uint) ([]model.AnswerRecord, error)
}

type interviewService struct {
	orch        *orchestrator.Orchestrator
	sessionRepo repository.SessionRepository
}

// NewInterviewService 创建一个新的 InterviewService 实例。
func NewInterviewService(orch *orchestrator.Orchestrator, sessionRepo repository.SessionRepository) InterviewService {
	return &interviewService{orch: orch, sessionRepo: sessionRepo}
}

func (s *interviewService) Start(ctx context.Context, userID uint, recordID uint, difficulty string, firstAnswer string, responseTimeS int) (*TurnResponse, error) {
	threadID, result, err := s.orch.Initialize(ctx, recordID, userID, difficulty, firstAnswer, responseTimeS)
	if err != nil {
		return nil, err
	}
	return &TurnResponse{
		ThreadID:     threadID,
		NextQuestion: result.NextQuestion,
		Evaluation:   result.Analysis,
		IsFinished:   result.IsFinished,
	}, nil
}

func (s *interviewService) Turn(ctx context.Context, threadID string, answer string, responseTimeS int) (*TurnResponse, error) {
	result, err := s.orch.ChatTurn(ctx, threadID, answer, responseTimeS)
	if err != nil {
		return nil, err
	}
	return &TurnResponse{
		NextQuestion: result.NextQuestion,
		Evaluation:   result.Analysis,
		IsFinished:   result.IsFinished,
	}, nil
}

func (s *interviewService) TurnAudio(ctx context.Context, threadID string, audio []byte, mimeType string, responseTimeS int) (*TurnResponse, []byte, error) {
	result, audioOut, err := s.orch.ChatTurnAudio(ctx, threadID, audio, mimeType, responseTimeS)
	if err != nil {
		return nil, nil, err
	}
	return &TurnResponse{
		NextQuestion: result.NextQuestion,
		Evaluation:   result.Analysis,
		IsFinished:   result.IsFinished,
	}, audioOut, nil
}

func (s *interviewService) ListSessions(userID uint) ([]model.InterviewSession, error) {
	return s.sessionRepo.ListByUser(userID)
}

func (s *interviewService) GetSession(threadID string, userID uint) (*model.InterviewSession, error) {
	session, err := s.sessionRepo.GetByThreadID(threadID)
	if err != nil {
		return nil, apperr.SessionNotFound
	}
	if session.UserID != userID {
		return nil, apperr.SessionNotFound
	}
	return session, nil
}

// Abandon 实现 abandon(thread_id)（§4.7），先校验会话归属再委托给编排器。
func (s *interviewService) Abandon(ctx context.Context, threadID string, userID uint) error {
	session, err := s.sessionRepo.GetByThreadID(threadID)
	if err != nil {
		return apperr.SessionNotFound
	}
	if session.UserID != userID {
		return apperr.SessionNotFound
	}
	return s.orch.Abandon(ctx, threadID)
}

// GetLogs 实现 get_logs(session_id)（§4.7），从最新 Checkpoint 重放有序问答记录。
func (s *interviewService) GetLogs(ctx context.Context, threadID string, userID uint) ([]model.AnswerRecord, error) {
	session, err := s.sessionRepo.GetByThreadID(threadID)
	if err != nil {
		return nil, apperr.SessionNotFound
	}
	if session.UserID != userID {
		return nil, apperr.SessionNotFound
	}
	return s.orch.GetLogs(ctx, threadID)
}
