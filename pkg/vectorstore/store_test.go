package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mockinterview-go/internal/model"
)

func chunkScored(chunkIndex int, score float64) model.ScoredChunk {
	return model.ScoredChunk{Chunk: model.Chunk{ChunkIndex: chunkIndex}, Score: score}
}

func TestStableSortByScoreThenIndex_OrdersByScoreDescending(t *testing.T) {
	results := []model.ScoredChunk{
		chunkScored(0, 0.5),
		chunkScored(1, 0.9),
		chunkScored(2, 0.7),
	}
	stableSortByScoreThenIndex(results)
	assert.Equal(t, []int{1, 2, 0}, chunkIndices(results))
}

func TestStableSortByScoreThenIndex_TiesBreakByChunkIndexAscending(t *testing.T) {
	results := []model.ScoredChunk{
		chunkScored(3, 0.8),
		chunkScored(1, 0.8),
		chunkScored(2, 0.8),
	}
	stableSortByScoreThenIndex(results)
	assert.Equal(t, []int{1, 2, 3}, chunkIndices(results))
}

func TestStableSortByScoreThenIndex_MixedTiesAndDistinctScores(t *testing.T) {
	results := []model.ScoredChunk{
		chunkScored(5, 0.6),
		chunkScored(4, 0.9),
		chunkScored(1, 0.9),
		chunkScored(2, 0.3),
	}
	stableSortByScoreThenIndex(results)
	assert.Equal(t, []int{1, 4, 5, 2}, chunkIndices(results))
}

func TestStableSortByScoreThenIndex_EmptyAndSingleton(t *testing.T) {
	empty := []model.ScoredChunk{}
	stableSortByScoreThenIndex(empty)
	assert.Empty(t, empty)

	single := []model.ScoredChunk{chunkScored(0, 0.42)}
	stableSortByScoreThenIndex(single)
	assert.Equal(t, []int{0}, chunkIndices(single))
}

func TestVectorID_IsStableAndUnique(t *testing.T) {
	assert.Equal(t, "7_3", vectorID(7, 3))
	assert.NotEqual(t, vectorID(7, 3), vectorID(3, 7))
}

func TestCosineSimilarityFromESScore_UndoesESNormalization(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarityFromESScore(1.0), 1e-9, "perfect match normalizes to 1.0 in ES")
	assert.InDelta(t, 0.0, cosineSimilarityFromESScore(0.5), 1e-9, "orthogonal vectors normalize to 0.5 in ES")
	assert.InDelta(t, -1.0, cosineSimilarityFromESScore(0.0), 1e-9, "opposite vectors normalize to 0.0 in ES")
}

func chunkIndices(results []model.ScoredChunk) []int {
	indices := make([]int, len(results))
	for i, r := range results {
		indices[i] = r.Chunk.ChunkIndex
	}
	return indices
}
