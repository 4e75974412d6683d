package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/model"
)

// fakeCheckpointRepo is an in-memory stand-in for repository.CheckpointRepository,
// mirroring the append-only, per-thread-monotonic semantics of the MySQL-backed one.
type fakeCheckpointRepo struct {
	mu   sync.Mutex
	rows map[string][]model.Checkpoint
}

func newFakeCheckpointRepo() *fakeCheckpointRepo {
	return &fakeCheckpointRepo{rows: make(map[string][]model.Checkpoint)}
}

func (f *fakeCheckpointRepo) Append(threadID, nodeName, stateBlob string) (*model.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nextID := len(f.rows[threadID]) + 1
	cp := model.Checkpoint{ThreadID: threadID, CheckpointID: nextID, NodeName: nodeName, StateBlob: stateBlob}
	f.rows[threadID] = append(f.rows[threadID], cp)
	return &cp, nil
}

func (f *fakeCheckpointRepo) Latest(threadID string) (*model.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.rows[threadID]
	if len(rows) == 0 {
		return nil, errors.New("record not found")
	}
	cp := rows[len(rows)-1]
	return &cp, nil
}

func (f *fakeCheckpointRepo) History(threadID string) ([]model.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Checkpoint(nil), f.rows[threadID]...), nil
}

// fakeCheckpointCache is an in-memory stand-in for repository.CheckpointCacheRepository.
type fakeCheckpointCache struct {
	mu    sync.Mutex
	blobs map[string]string
}

func newFakeCheckpointCache() *fakeCheckpointCache {
	return &fakeCheckpointCache{blobs: make(map[string]string)}
}

func (f *fakeCheckpointCache) GetLatestStateBlob(_ context.Context, threadID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, ok := f.blobs[threadID]
	return blob, ok, nil
}

func (f *fakeCheckpointCache) SetLatestStateBlob(_ context.Context, threadID, stateBlob string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[threadID] = stateBlob
	return nil
}

func (f *fakeCheckpointCache) Invalidate(_ context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, threadID)
	return nil
}

func TestCheckpointStore_CommitThenLoadHitsCache(t *testing.T) {
	repo := newFakeCheckpointRepo()
	cache := newFakeCheckpointCache()
	store := newCheckpointStore(repo, cache)
	ctx := context.Background()

	state := model.InterviewState{Difficulty: "medium", RemainingTimeS: 500}
	require.NoError(t, store.commit(ctx, "thread-1", "initialize_interview", state))

	loaded, err := store.load(ctx, "thread-1")
	require.NoError(t, err)
	require.Equal(t, state.Difficulty, loaded.Difficulty)
	require.Equal(t, state.RemainingTimeS, loaded.RemainingTimeS)

	blob, ok, err := cache.GetLatestStateBlob(ctx, "thread-1")
	require.NoError(t, err)
	require.True(t, ok)
	var cached model.InterviewState
	require.NoError(t, json.Unmarshal([]byte(blob), &cached))
	require.Equal(t, state.Difficulty, cached.Difficulty)
}

func TestCheckpointStore_LoadFallsBackToRepoOnCacheMiss(t *testing.T) {
	repo := newFakeCheckpointRepo()
	cache := newFakeCheckpointCache()
	store := newCheckpointStore(repo, cache)
	ctx := context.Background()

	state := model.InterviewState{Difficulty: "hard"}
	require.NoError(t, store.commit(ctx, "thread-2", "analyzer", state))
	require.NoError(t, cache.Invalidate(ctx, "thread-2"))

	loaded, err := store.load(ctx, "thread-2")
	require.NoError(t, err)
	require.Equal(t, "hard", loaded.Difficulty)
}

func TestCheckpointStore_LoadUnknownThreadIsSessionNotFound(t *testing.T) {
	store := newCheckpointStore(newFakeCheckpointRepo(), newFakeCheckpointCache())
	_, err := store.load(context.Background(), "never-started")
	require.ErrorIs(t, err, apperr.SessionNotFound)
}

func TestCheckpointStore_AppendAssignsMonotonicCheckpointIDs(t *testing.T) {
	repo := newFakeCheckpointRepo()
	cache := newFakeCheckpointCache()
	store := newCheckpointStore(repo, cache)
	ctx := context.Background()

	require.NoError(t, store.commit(ctx, "thread-3", "initialize_interview", model.InterviewState{}))
	require.NoError(t, store.commit(ctx, "thread-3", "analyzer", model.InterviewState{}))
	require.NoError(t, store.commit(ctx, "thread-3", "follow_up_generator", model.InterviewState{}))

	history, err := repo.History("thread-3")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, cp := range history {
		require.Equal(t, i+1, cp.CheckpointID)
	}
	require.Equal(t, "follow_up_generator", history[2].NodeName)
}
