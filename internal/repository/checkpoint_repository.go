package repository

import (
	"gorm.io/gorm"

	"mockinterview-go/internal/model"
)

// CheckpointRepository 定义了对 checkpoints 表的数据操作接口：append-only，
// 每次节点执行产生一行，checkpoint_id 在同一 thread_id 内严格单调递增。
type CheckpointRepository interface {
	// Append 插入新 Checkpoint，checkpoint_id 取该 thread_id 当前最大值 + 1。
	Append(threadID, nodeName, stateBlob string) (*model.Checkpoint, error)
	// Latest 返回某 thread_id 目前的最新 Checkpoint。
	Latest(threadID string) (*model.Checkpoint, error)
	// History 按 checkpoint_id 升序返回某 thread_id 的全部 Checkpoint。
	History(threadID string) ([]model.Checkpoint, error)
}

type checkpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository 创建一个新的 CheckpointRepository 实例。
func NewCheckpointRepository(db *gorm.DB) CheckpointRepository {
	return &checkpointRepository{db: db}
}

func (r *checkpointRepository) Append(threadID, nodeName, stateBlob string) (*model.Checkpoint, error) {
	var cp *model.Checkpoint
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var latest model.Checkpoint
		nextID := 1
		err := tx.Where("thread_id = ?", threadID).Order("checkpoint_id desc").First(&latest).Error
		if err == nil {
			nextID = latest.CheckpointID + 1
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
		cp = &model.Checkpoint{
			ThreadID:     threadID,
			CheckpointID: nextID,
			NodeName:     nodeName,
			StateBlob:    stateBlob,
		}
		return tx.Create(cp).Error
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

func (r *checkpointRepository) Latest(threadID string) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	err := r.db.Where("thread_id = ?", threadID).Order("checkpoint_id desc").First(&cp).Error
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *checkpointRepository) History(threadID string) ([]model.Checkpoint, error) {
	var cps []model.Checkpoint
	err := r.db.Where("thread_id = ?", threadID).Order("checkpoint_id asc").Find(&cps).Error
	return cps, err
}
