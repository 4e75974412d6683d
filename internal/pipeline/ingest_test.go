package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchOf_SplitsIntoFixedSizeChunksPreservingOrder(t *testing.T) {
	pages := [][]byte{{1}, {2}, {3}, {4}, {5}}
	batches := batchOf(pages, 2)
	assert.Len(t, batches, 3)
	assert.Equal(t, [][]byte{{1}, {2}}, batches[0])
	assert.Equal(t, [][]byte{{3}, {4}}, batches[1])
	assert.Equal(t, [][]byte{{5}}, batches[2])
}

func TestBatchOf_ExactMultipleLeavesNoShortFinalBatch(t *testing.T) {
	pages := [][]byte{{1}, {2}, {3}, {4}}
	batches := batchOf(pages, 2)
	assert.Len(t, batches, 2)
}

func TestBatchOf_BatchSizeLargerThanInputIsOneBatch(t *testing.T) {
	pages := [][]byte{{1}, {2}}
	batches := batchOf(pages, 10)
	assert.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestBatchOf_NonPositiveBatchSizeFallsBackToOne(t *testing.T) {
	pages := [][]byte{{1}, {2}, {3}}
	batches := batchOf(pages, 0)
	assert.Len(t, batches, 3)
}

func TestBatchOf_EmptyInputProducesNoBatches(t *testing.T) {
	batches := batchOf(nil, 3)
	assert.Empty(t, batches)
}

func TestElidePII_RedactsResidentID(t *testing.T) {
	out := elidePII("학생 주민등록번호는 010101-1234567 입니다")
	assert.NotContains(t, out, "010101-1234567")
	assert.Contains(t, out, redactionToken)
}

func TestElidePII_RedactsHonorificName(t *testing.T) {
	out := elidePII("김철수 선생님께서 말씀하셨다")
	assert.NotContains(t, out, "김철수 선생님")
	assert.Contains(t, out, redactionToken)
}

func TestElidePII_LeavesUnrelatedTextUntouched(t *testing.T) {
	in := "3학년 동안 수학 내신 1등급을 유지했다"
	assert.Equal(t, in, elidePII(in))
}

func TestProgressCounter_IncrementIsMonotonicUnderConcurrency(t *testing.T) {
	pc := &progressCounter{}
	const workers = 20
	var wg sync.WaitGroup
	seen := make([]int, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen[i] = pc.increment()
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, pc.completed)
	values := make(map[int]bool, workers)
	for _, v := range seen {
		assert.False(t, values[v], "increment returned duplicate value %d", v)
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, workers)
		values[v] = true
	}
}

func TestProgressCounter_SequentialCallsCountUp(t *testing.T) {
	pc := &progressCounter{}
	assert.Equal(t, 1, pc.increment())
	assert.Equal(t, 2, pc.increment())
	assert.Equal(t, 3, pc.increment())
}
