package repository

import (
	"gorm.io/gorm"

	"mockinterview-go/internal/model"
)

// RecordRepository 定义了对 records 表的数据操作接口。
type RecordRepository interface {
	Create(record *model.Record) error
	GetByID(id uint) (*model.Record, error)
	UpdateStatus(id uint, status model.RecordStatus) error
	UpdateBlobKey(id uint, blobKey string) error
	ListByUser(userID uint) ([]model.Record, error)
	Delete(id uint) error
}

type recordRepository struct {
	db *gorm.DB
}

// NewRecordRepository 创建一个新的 RecordRepository 实例。
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) Create(record *model.Record) error {
	return r.db.Create(record).Error
}

func (r *recordRepository) GetByID(id uint) (*model.Record, error) {
	var record model.Record
	if err := r.db.First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *recordRepository) UpdateStatus(id uint, status model.RecordStatus) error {
	return r.db.Model(&model.Record{}).Where("id = ?", id).Update("status", status).Error
}

func (r *recordRepository) UpdateBlobKey(id uint, blobKey string) error {
	return r.db.Model(&model.Record{}).Where("id = ?", id).Update("blob_key", blobKey).Error
}

func (r *recordRepository) ListByUser(userID uint) ([]model.Record, error) {
	var records []model.Record
	err := r.db.Where("user_id = ?", userID).Order("created_at desc").Find(&records).Error
	return records, err
}

func (r *recordRepository) Delete(id uint) error {
	return r.db.Delete(&model.Record{}, id).Error
}
