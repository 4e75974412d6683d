// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/minio/minio-go/v7"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/config"
	"mockinterview-go/internal/model"
	"mockinterview-go/internal/repository"
	"mockinterview-go/pkg/kafka"
	"mockinterview-go/pkg/log"
	"mockinterview-go/pkg/storage"
	"mockinterview-go/pkg/tasks"
)

// RecordService 接口定义了生活记录（생기부）上传与查询相关的业务操作。
type RecordService interface {
	Upload(ctx context.Context, userID uint, title string, file multipart.File, size int64) (*model.Record, error)
	Get(recordID, userID uint) (*model.Record, error)
	ListByUser(userID uint) ([]model.Record, error)
	Delete(recordID, userID uint) error
}

type recordService struct {
	recordRepo repository.RecordRepository
	minioCfg   config.MinIOConfig
}

// NewRecordService 创建一个新的 RecordService 实例。
func NewRecordService(recordRepo repository.RecordRepository, minioCfg config.MinIOConfig) RecordService {
	return &recordService{recordRepo: recordRepo, minioCfg: minioCfg}
}

func blobKeyFor(userID uint, recordID uint) string {
	return fmt.Sprintf("records/%d/%d.pdf", userID, recordID)
}

// Upload 把 PDF 存入 MinIO，创建 PENDING 记录，并投递一个摄取任务（§4.4）。
func (s *recordService) Upload(ctx context.Context, userID uint, title string, file multipart.File, size int64) (*model.Record, error) {
	record := &model.Record{
		UserID: userID,
		Title:  title,
		Status: model.RecordPending,
	}
	if err := s.recordRepo.Create(record); err != nil {
		return nil, apperr.Storage("create record", err)
	}

	blobKey := blobKeyFor(userID, record.ID)
	if _, err := storage.MinioClient.PutObject(ctx, s.minioCfg.BucketName, blobKey, file, size, minio.PutObjectOptions{ContentType: "application/pdf"}); err != nil {
		return nil, apperr.Storage("upload record blob", err)
	}
	record.BlobKey = blobKey
	if err := s.recordRepo.UpdateBlobKey(record.ID, blobKey); err != nil {
		return nil, apperr.Storage("persist record blob key", err)
	}

	if err := kafka.ProduceIngestTask(tasks.IngestTask{RecordID: record.ID, BlobKey: blobKey}); err != nil {
		return nil, apperr.Storage("enqueue ingest task", err)
	}
	log.Infof("[RecordService] record %d uploaded by user %d, ingest task enqueued", record.ID, userID)
	return record, nil
}

func (s *recordService) Get(recordID, userID uint) (*model.Record, error) {
	record, err := s.recordRepo.GetByID(recordID)
	if err != nil {
		return nil, apperr.NotFound("record not found")
	}
	if record.UserID != userID {
		return nil, apperr.NotFound("record not found")
	}
	return record, nil
}

func (s *recordService) ListByUser(userID uint) ([]model.Record, error) {
	return s.recordRepo.ListByUser(userID)
}

func (s *recordService) Delete(recordID, userID uint) error {
	record, err := s.Get(recordID, userID)
	if err != nil {
		return err
	}
	if err := storage.MinioClient.RemoveObject(context.Background(), s.minioCfg.BucketName, record.BlobKey, minio.RemoveObjectOptions{}); err != nil {
		log.Warnf("[RecordService] failed to remove blob for record %d: %v", recordID, err)
	}
	if err := s.recordRepo.Delete(recordID); err != nil {
		return apperr.Storage("delete record", err)
	}
	return nil
}
