// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// RecordStatus 是生活记录（생기부）的生命周期状态。
type RecordStatus string

const (
	RecordPending    RecordStatus = "PENDING"
	RecordProcessing RecordStatus = "PROCESSING"
	RecordReady      RecordStatus = "READY"
	RecordFailed     RecordStatus = "FAILED"
)

// Record 对应数据库中的 records 表：学生上传的生活记录 PDF 的元数据与状态机。
type Record struct {
	ID        uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint         `gorm:"not null;index" json:"userId"`
	Title     string       `gorm:"type:varchar(255);not null" json:"title"`
	BlobKey   string       `gorm:"type:varchar(255);not null" json:"blobKey"`
	Status    RecordStatus `gorm:"type:varchar(20);not null;default:PENDING" json:"status"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Record) TableName() string {
	return "records"
}
