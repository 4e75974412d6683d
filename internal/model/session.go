// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// SessionStatus 是面试会话的生命周期状态。
type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionAbandoned  SessionStatus = "ABANDONED"
)

// InterviewSession 对应数据库中的 sessions 表。thread_id 对外可见且全局唯一。
type InterviewSession struct {
	ID                uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	ThreadID          string        `gorm:"type:varchar(64);uniqueIndex;not null;column:thread_id" json:"threadId"`
	UserID            uint          `gorm:"not null;index" json:"userId"`
	RecordID          uint          `gorm:"not null;index" json:"recordId"`
	Difficulty        string        `gorm:"type:varchar(10);not null" json:"difficulty"`
	Status            SessionStatus `gorm:"type:varchar(20);not null;default:IN_PROGRESS" json:"status"`
	StartedAt         time.Time     `gorm:"not null" json:"startedAt"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
	AvgResponseTime   float64       `gorm:"column:avg_response_time" json:"avgResponseTime"`
	TotalQuestions    int           `gorm:"column:total_questions" json:"totalQuestions"`
	TotalDurationS    int           `gorm:"column:total_duration" json:"totalDurationS"`
	FinalReport       string        `gorm:"type:text;column:final_report" json:"finalReport,omitempty"`
}

func (InterviewSession) TableName() string {
	return "sessions"
}
