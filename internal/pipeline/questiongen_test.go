package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockinterview-go/internal/model"
	"mockinterview-go/pkg/modelgateway"
)

func TestDifficultyFromString_RecognizesDeep(t *testing.T) {
	assert.Equal(t, model.DifficultyDeep, difficultyFromString("DEEP"))
}

func TestDifficultyFromString_UnknownFallsBackToBasic(t *testing.T) {
	assert.Equal(t, model.DifficultyBasic, difficultyFromString("EASY"))
	assert.Equal(t, model.DifficultyBasic, difficultyFromString(""))
}

func TestBuildQuestionGenPrompt_IncludesCategoryAndChunkBodies(t *testing.T) {
	chunks := []model.Chunk{{Body: "3학년 내내 수학 동아리 활동"}, {Body: "교내 수학경시대회 금상"}}
	prompt := buildQuestionGenPrompt(model.CategoryActivity, chunks)
	assert.Contains(t, prompt, string(model.CategoryActivity))
	assert.Contains(t, prompt, "3학년 내내 수학 동아리 활동")
	assert.Contains(t, prompt, "교내 수학경시대회 금상")
}

func TestQuestionGenJobID_Format(t *testing.T) {
	assert.Equal(t, "qgen:42", questionGenJobID(42))
}

// fakeQGenGateway is an in-memory stand-in for modelgateway.Client used to drive
// generateForCategory without any real network calls.
type fakeQGenGateway struct {
	raw json.RawMessage
	err error
}

func (f *fakeQGenGateway) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (f *fakeQGenGateway) Generate(ctx context.Context, prompt string, schema modelgateway.Schema, gen *modelgateway.GenerationParams) (json.RawMessage, error) {
	return f.raw, f.err
}
func (f *fakeQGenGateway) StreamGenerate(ctx context.Context, messages []modelgateway.Message, gen *modelgateway.GenerationParams, writer modelgateway.MessageWriter) error {
	return nil
}
func (f *fakeQGenGateway) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return "", nil
}
func (f *fakeQGenGateway) EmbeddingDim() int { return 768 }

// fakeQGenStore is an in-memory stand-in for vectorstore.Store, only GetByCategory is exercised.
type fakeQGenStore struct {
	chunks []model.Chunk
	err    error
}

func (f *fakeQGenStore) PutChunks(ctx context.Context, chunks []model.Chunk, embeddings [][]float32) error {
	return nil
}
func (f *fakeQGenStore) GetByCategory(ctx context.Context, recordID uint, category string) ([]model.Chunk, error) {
	return f.chunks, f.err
}
func (f *fakeQGenStore) Search(ctx context.Context, recordID uint, queryVector []float32, topK int, category string) ([]model.ScoredChunk, error) {
	return nil, nil
}
func (f *fakeQGenStore) DeleteByRecord(ctx context.Context, recordID uint) error { return nil }

func TestGenerateForCategory_MapsGeneratedQuestionsFromGatewayResponse(t *testing.T) {
	gw := &fakeQGenGateway{raw: json.RawMessage(`[
		{"body": "동아리 활동에서 가장 어려웠던 점은?", "difficulty": "BASIC", "model_answer": "답안1", "purpose": "목적1"},
		{"body": "수학경시대회 준비 과정을 설명해보세요", "difficulty": "DEEP", "model_answer": "답안2", "purpose": "목적2"}
	]`)}
	store := &fakeQGenStore{chunks: []model.Chunk{{Body: "동아리 활동 내역"}}}
	p := &QuestionGenProcessor{gateway: gw, store: store}

	questions, err := p.generateForCategory(context.Background(), 1, model.CategoryActivity)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, model.CategoryActivity, questions[0].Category)
	assert.Equal(t, model.DifficultyBasic, questions[0].Difficulty)
	assert.Equal(t, model.DifficultyDeep, questions[1].Difficulty)
	assert.Equal(t, "답안2", questions[1].ModelAnswer)
}

func TestGenerateForCategory_TruncatesToMaxQuestionsPerCategory(t *testing.T) {
	var raw []map[string]string
	for i := 0; i < 8; i++ {
		raw = append(raw, map[string]string{
			"body": "질문", "difficulty": "BASIC", "model_answer": "답안", "purpose": "목적",
		})
	}
	encoded, err := json.Marshal(raw)
	require.NoError(t, err)

	gw := &fakeQGenGateway{raw: encoded}
	store := &fakeQGenStore{chunks: []model.Chunk{{Body: "성적 관련 내용"}}}
	p := &QuestionGenProcessor{gateway: gw, store: store}

	questions, err := p.generateForCategory(context.Background(), 1, model.CategoryGrades)
	require.NoError(t, err)
	assert.Len(t, questions, maxQuestionsPerCategory)
}

func TestGenerateForCategory_PropagatesGatewayError(t *testing.T) {
	gw := &fakeQGenGateway{err: assertErr("gateway unavailable")}
	store := &fakeQGenStore{chunks: []model.Chunk{{Body: "x"}}}
	p := &QuestionGenProcessor{gateway: gw, store: store}

	_, err := p.generateForCategory(context.Background(), 1, model.CategoryGrades)
	require.Error(t, err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
