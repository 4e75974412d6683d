package repository

import (
	"gorm.io/gorm"

	"mockinterview-go/internal/model"
)

// QuestionSetRepository 定义了对 question_sets / questions 表的数据操作接口。
type QuestionSetRepository interface {
	// Create 原子插入一个 QuestionSet 及其全部 Question。
	Create(set *model.QuestionSet) error
	GetByID(id uint) (*model.QuestionSet, error)
	ListByRecord(recordID uint) ([]model.QuestionSet, error)
}

type questionSetRepository struct {
	db *gorm.DB
}

// NewQuestionSetRepository 创建一个新的 QuestionSetRepository 实例。
func NewQuestionSetRepository(db *gorm.DB) QuestionSetRepository {
	return &questionSetRepository{db: db}
}

func (r *questionSetRepository) Create(set *model.QuestionSet) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(set).Error
	})
}

func (r *questionSetRepository) GetByID(id uint) (*model.QuestionSet, error) {
	var set model.QuestionSet
	if err := r.db.Preload("Questions").First(&set, id).Error; err != nil {
		return nil, err
	}
	return &set, nil
}

func (r *questionSetRepository) ListByRecord(recordID uint) ([]model.QuestionSet, error) {
	var sets []model.QuestionSet
	err := r.db.Preload("Questions").Where("record_id = ?", recordID).Order("created_at desc").Find(&sets).Error
	return sets, err
}
