// Package orchestrator 实现面试编排器：一个按 thread_id 分区的状态机，
// 每次转换由若干节点组成，每个节点执行后状态作为新 Checkpoint 追加持久化
// （§4.6，§9 重设计：状态不可变，节点是 State -> State 的纯函数）。
package orchestrator

import (
	"context"
	"encoding/json"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/model"
	"mockinterview-go/internal/repository"
	"mockinterview-go/pkg/log"
)

// checkpointStore 把 CheckpointRepository（MySQL，权威来源）与
// CheckpointCacheRepository（Redis，读路径加速）组合起来。
type checkpointStore struct {
	repo  repository.CheckpointRepository
	cache repository.CheckpointCacheRepository
}

func newCheckpointStore(repo repository.CheckpointRepository, cache repository.CheckpointCacheRepository) *checkpointStore {
	return &checkpointStore{repo: repo, cache: cache}
}

// load 返回某 thread_id 最新的 InterviewState；优先读缓存，未命中回退 MySQL。
func (s *checkpointStore) load(ctx context.Context, threadID string) (model.InterviewState, error) {
	if blob, ok, err := s.cache.GetLatestStateBlob(ctx, threadID); err == nil && ok {
		var state model.InterviewState
		if jsonErr := json.Unmarshal([]byte(blob), &state); jsonErr == nil {
			return state, nil
		}
		log.Warnf("[Orchestrator] cached state for thread %s is corrupt, falling back to MySQL", threadID)
	}

	cp, err := s.repo.Latest(threadID)
	if err != nil {
		return model.InterviewState{}, apperr.SessionNotFound
	}
	var state model.InterviewState
	if err := json.Unmarshal([]byte(cp.StateBlob), &state); err != nil {
		return model.InterviewState{}, apperr.Internal("decode checkpoint state blob", err)
	}
	return state, nil
}

// commit 把某节点产生的新状态作为一个新 Checkpoint 追加，并刷新缓存。
func (s *checkpointStore) commit(ctx context.Context, threadID, nodeName string, state model.InterviewState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return apperr.Internal("encode checkpoint state blob", err)
	}
	if _, err := s.repo.Append(threadID, nodeName, string(blob)); err != nil {
		return apperr.Storage("append checkpoint", err)
	}
	if err := s.cache.SetLatestStateBlob(ctx, threadID, string(blob)); err != nil {
		log.Warnf("[Orchestrator] failed to refresh checkpoint cache for thread %s: %v", threadID, err)
	}
	return nil
}
