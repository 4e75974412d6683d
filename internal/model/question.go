// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Difficulty 是题目难度枚举。
type Difficulty string

const (
	DifficultyBasic Difficulty = "BASIC"
	DifficultyDeep  Difficulty = "DEEP"
)

// QuestionSet 对应数据库中的 question_sets 表，由 Question Generation 创建后不可变。
type QuestionSet struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RecordID      uint      `gorm:"not null;index" json:"recordId"`
	TargetSchool  string    `gorm:"type:varchar(100);not null" json:"targetSchool"`
	TargetMajor   string    `gorm:"type:varchar(100);not null" json:"targetMajor"`
	InterviewType string    `gorm:"type:varchar(50);not null" json:"interviewType"`
	Title         string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	Questions     []Question `gorm:"foreignKey:SetID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (QuestionSet) TableName() string {
	return "question_sets"
}

// Question 对应数据库中的 questions 表。每个 set 内每个分类最多 5 道题。
type Question struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	SetID        uint       `gorm:"not null;index;column:set_id" json:"setId"`
	Category     Category   `gorm:"type:varchar(10);not null" json:"category"`
	Body         string     `gorm:"type:text;not null" json:"body"`
	Difficulty   Difficulty `gorm:"type:varchar(10);not null" json:"difficulty"`
	ModelAnswer  string     `gorm:"type:text" json:"modelAnswer,omitempty"`
	Purpose      string     `gorm:"type:text" json:"purpose,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}
