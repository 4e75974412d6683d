package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// CheckpointCacheRepository 缓存每个 thread_id 最新的状态快照 JSON，
// 与 CheckpointRepository 的 MySQL 记录保持最终一致；命中缓存可以省去
// 每回合都去 MySQL 读最新一行的往返。与老师仓库的
// GetConversationHistory/UpdateConversationHistory 同构，只是把"最近 N
// 条对话"换成"单条最新状态"。
type CheckpointCacheRepository interface {
	GetLatestStateBlob(ctx context.Context, threadID string) (string, bool, error)
	SetLatestStateBlob(ctx context.Context, threadID, stateBlob string) error
	Invalidate(ctx context.Context, threadID string) error
}

type redisCheckpointCacheRepository struct {
	redisClient *redis.Client
}

// NewCheckpointCacheRepository 创建一个新的 CheckpointCacheRepository 实例。
func NewCheckpointCacheRepository(redisClient *redis.Client) CheckpointCacheRepository {
	return &redisCheckpointCacheRepository{redisClient: redisClient}
}

func cacheKey(threadID string) string {
	return fmt.Sprintf("checkpoint:latest:%s", threadID)
}

// GetLatestStateBlob 返回缓存的最新状态 JSON；未命中返回 ok=false，不算错误。
func (r *redisCheckpointCacheRepository) GetLatestStateBlob(ctx context.Context, threadID string) (string, bool, error) {
	blob, err := r.redisClient.Get(ctx, cacheKey(threadID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cached checkpoint: %w", err)
	}
	return blob, true, nil
}

// SetLatestStateBlob 在每次节点 Checkpoint 提交后刷新缓存。
func (r *redisCheckpointCacheRepository) SetLatestStateBlob(ctx context.Context, threadID, stateBlob string) error {
	if err := r.redisClient.Set(ctx, cacheKey(threadID), stateBlob, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to cache checkpoint: %w", err)
	}
	return nil
}

// Invalidate 在会话终结（wrap_up/abandon）后清理缓存条目。
func (r *redisCheckpointCacheRepository) Invalidate(ctx context.Context, threadID string) error {
	return r.redisClient.Del(ctx, cacheKey(threadID)).Err()
}
