package repository

import (
	"time"

	"gorm.io/gorm"

	"mockinterview-go/internal/model"
)

// SessionRepository 定义了对 sessions 表的数据操作接口。
type SessionRepository interface {
	Create(session *model.InterviewSession) error
	GetByThreadID(threadID string) (*model.InterviewSession, error)
	Update(session *model.InterviewSession) error
	ListByUser(userID uint) ([]model.InterviewSession, error)
	Abandon(threadID string) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *model.InterviewSession) error {
	return r.db.Create(session).Error
}

func (r *sessionRepository) GetByThreadID(threadID string) (*model.InterviewSession, error) {
	var session model.InterviewSession
	if err := r.db.Where("thread_id = ?", threadID).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Update(session *model.InterviewSession) error {
	return r.db.Save(session).Error
}

func (r *sessionRepository) ListByUser(userID uint) ([]model.InterviewSession, error) {
	var sessions []model.InterviewSession
	err := r.db.Where("user_id = ?", userID).Order("started_at desc").Find(&sessions).Error
	return sessions, err
}

// Abandon 把一个仍处于 IN_PROGRESS 的会话标记为 ABANDONED，仅允许一次。
func (r *sessionRepository) Abandon(threadID string) error {
	now := time.Now()
	res := r.db.Model(&model.InterviewSession{}).
		Where("thread_id = ? AND status = ?", threadID, model.SessionInProgress).
		Updates(map[string]interface{}{"status": model.SessionAbandoned, "completed_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
