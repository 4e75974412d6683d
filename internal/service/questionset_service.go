// Package service 包含了应用的业务逻辑层。
package service

import (
	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/model"
	"mockinterview-go/internal/repository"
	"mockinterview-go/pkg/kafka"
	"mockinterview-go/pkg/log"
	"mockinterview-go/pkg/tasks"
)

// QuestionSetService 接口定义了题目生成与查询相关的业务操作。
type QuestionSetService interface {
	RequestGeneration(recordID uint, userID uint, targetSchool, targetMajor, interviewType string) error
	Get(setID uint) (*model.QuestionSet, error)
	ListByRecord(recordID uint) ([]model.QuestionSet, error)
}

type questionSetService struct {
	recordRepo repository.RecordRepository
	setRepo    repository.QuestionSetRepository
}

// NewQuestionSetService 创建一个新的 QuestionSetService 实例。
func NewQuestionSetService(recordRepo repository.RecordRepository, setRepo repository.QuestionSetRepository) QuestionSetService {
	return &questionSetService{recordRepo: recordRepo, setRepo: setRepo}
}

// RequestGeneration 校验记录归属与前置状态后投递一个题目生成任务（§4.5）。
func (s *questionSetService) RequestGeneration(recordID uint, userID uint, targetSchool, targetMajor, interviewType string) error {
	record, err := s.recordRepo.GetByID(recordID)
	if err != nil {
		return apperr.NotFound("record not found")
	}
	if record.UserID != userID {
		return apperr.NotFound("record not found")
	}
	if record.Status != model.RecordReady {
		return apperr.RecordNotReady
	}

	task := tasks.QuestionGenTask{
		RecordID:      recordID,
		TargetSchool:  targetSchool,
		TargetMajor:   targetMajor,
		InterviewType: interviewType,
	}
	if err := kafka.ProduceQuestionGenTask(task); err != nil {
		return apperr.Storage("enqueue question generation task", err)
	}
	log.Infof("[QuestionSetService] question generation requested for record %d (%s/%s/%s)", recordID, targetSchool, targetMajor, interviewType)
	return nil
}

func (s *questionSetService) Get(setID uint) (*model.QuestionSet, error) {
	set, err := s.setRepo.GetByID(setID)
	if err != nil {
		return nil, apperr.NotFound("question set not found")
	}
	return set, nil
}

func (s *questionSetService) ListByRecord(recordID uint) ([]model.QuestionSet, error) {
	return s.setRepo.ListByRecord(recordID)
}
