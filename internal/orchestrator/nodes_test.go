package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockinterview-go/internal/model"
	"mockinterview-go/pkg/modelgateway"
)

// fakeAnalyzerGateway is an in-memory stand-in for modelgateway.Client,
// only Generate is exercised by analyzer.
type fakeAnalyzerGateway struct {
	raw json.RawMessage
	err error
}

func (f *fakeAnalyzerGateway) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (f *fakeAnalyzerGateway) Generate(ctx context.Context, prompt string, schema modelgateway.Schema, gen *modelgateway.GenerationParams) (json.RawMessage, error) {
	return f.raw, f.err
}
func (f *fakeAnalyzerGateway) StreamGenerate(ctx context.Context, messages []modelgateway.Message, gen *modelgateway.GenerationParams, writer modelgateway.MessageWriter) error {
	return nil
}
func (f *fakeAnalyzerGateway) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return "", nil
}
func (f *fakeAnalyzerGateway) EmbeddingDim() int { return 768 }

func TestAnalyzer_PopulatesStrengthAndWeaknessTagsFromGatewayResponse(t *testing.T) {
	gw := &fakeAnalyzerGateway{raw: json.RawMessage(`{
		"score": 85,
		"feedback": "근거가 구체적입니다.",
		"strength_tags": ["구체적 사례", "논리적 전개"],
		"weakness_tags": ["결론 요약 부족"]
	}`)}
	state := model.InterviewState{
		PendingQuestion: "동아리 활동에서 가장 어려웠던 점은?",
		CurrentSubTopic: "동아리",
		Scores:          map[model.Axis]int{},
	}

	next, err := analyzer(context.Background(), gw, state, "답변입니다", 20)
	require.NoError(t, err)
	require.Len(t, next.AnswerMetadata, 1)

	eval := next.AnswerMetadata[0].Evaluation
	assert.Equal(t, 85, eval.Score)
	assert.Equal(t, model.GradeGood, eval.Grade)
	assert.Equal(t, []string{"구체적 사례", "논리적 전개"}, eval.StrengthTags)
	assert.Equal(t, []string{"결론 요약 부족"}, eval.WeaknessTags)
}

func TestAnalyzer_DecrementsRemainingTimeAndAdvancesStage(t *testing.T) {
	gw := &fakeAnalyzerGateway{raw: json.RawMessage(`{"score": 60, "feedback": "보통입니다.", "strength_tags": [], "weakness_tags": []}`)}
	state := model.InterviewState{
		RemainingTimeS: 100,
		CurrentSubTopic: "성적",
		Scores:          map[model.Axis]int{},
	}

	next, err := analyzer(context.Background(), gw, state, "답변", 20)
	require.NoError(t, err)
	assert.Equal(t, 80, next.RemainingTimeS)
	assert.Equal(t, model.StageMain, next.Stage)
}

func TestAnalyzer_ClampsRemainingTimeAtZero(t *testing.T) {
	gw := &fakeAnalyzerGateway{raw: json.RawMessage(`{"score": 60, "feedback": "f", "strength_tags": [], "weakness_tags": []}`)}
	state := model.InterviewState{RemainingTimeS: 10, Scores: map[model.Axis]int{}}

	next, err := analyzer(context.Background(), gw, state, "답변", 25)
	require.NoError(t, err)
	assert.Equal(t, 0, next.RemainingTimeS)
}

func TestDifficultyGenerationParams_BoostsTemperatureOnlyForHardSessions(t *testing.T) {
	easy := difficultyGenerationParams("Easy")
	normal := difficultyGenerationParams("Normal")
	hard := difficultyGenerationParams("Hard")

	assert.InDelta(t, 0.5, *easy.Temperature, 1e-9)
	assert.InDelta(t, 0.5, *normal.Temperature, 1e-9)
	assert.InDelta(t, 0.8, *hard.Temperature, 1e-9)
}
