// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Checkpoint 对应数据库中的 checkpoints 表：每个 thread_id 的有序状态快照历史。
// CheckpointID 在同一 thread_id 内严格单调递增，任意快照均可被还原。
type Checkpoint struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ThreadID     string    `gorm:"type:varchar(64);not null;index:idx_thread_checkpoint,unique,priority:1;column:thread_id" json:"threadId"`
	CheckpointID int       `gorm:"not null;index:idx_thread_checkpoint,unique,priority:2;column:checkpoint_id" json:"checkpointId"`
	NodeName     string    `gorm:"type:varchar(50);not null;column:node_name" json:"nodeName"`
	StateBlob    string    `gorm:"type:longtext;not null;column:state_blob" json:"stateBlob"` // InterviewState 的 JSON 序列化
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Checkpoint) TableName() string {
	return "checkpoints"
}
