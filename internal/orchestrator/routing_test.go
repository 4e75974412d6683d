package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mockinterview-go/internal/config"
	"mockinterview-go/internal/model"
)

func testCfg() config.InterviewConfig {
	return config.InterviewConfig{
		TotalTimeS:       600,
		WrapUpThresholdS: 30,
		MaxTopics:        8,
		MaxFollowUps:     3,
		RetrievalTopK:    5,
	}
}

func withLastScore(score int) model.InterviewState {
	return model.InterviewState{
		AnswerMetadata: []model.AnswerRecord{
			{Evaluation: model.Evaluation{Score: score}},
		},
	}
}

func TestRoute_WrapUpWhenTimeBelowThreshold(t *testing.T) {
	cfg := testCfg()
	state := withLastScore(90)
	state.RemainingTimeS = 29
	assert.Equal(t, model.ActionWrapUp, route(state, cfg))
}

func TestRoute_TimeAtThresholdDoesNotWrapUp(t *testing.T) {
	cfg := testCfg()
	state := withLastScore(90)
	state.RemainingTimeS = 30
	state.AskedSubTopics = []string{"성적"}
	assert.Equal(t, model.ActionNewTopic, route(state, cfg))
}

func TestRoute_FollowUpOnLowScoreUnderCap(t *testing.T) {
	cfg := testCfg()
	state := withLastScore(55)
	state.RemainingTimeS = 300
	state.FollowUpCount = 2
	assert.Equal(t, model.ActionFollowUp, route(state, cfg))
}

func TestRoute_LowScoreAtFollowUpCapGoesToNewTopic(t *testing.T) {
	cfg := testCfg()
	state := withLastScore(55)
	state.RemainingTimeS = 300
	state.FollowUpCount = 3
	state.AskedSubTopics = []string{"성적"}
	assert.Equal(t, model.ActionNewTopic, route(state, cfg))
}

func TestRoute_MaxTopicsReachedWrapsUp(t *testing.T) {
	cfg := testCfg()
	state := withLastScore(90)
	state.RemainingTimeS = 300
	state.AskedSubTopics = []string{"출결", "성적", "동아리", "리더십", "인성/태도", "진로/자율", "독서", "봉사"}
	assert.Equal(t, model.ActionWrapUp, route(state, cfg))
}

func TestRoute_DefaultToNewTopic(t *testing.T) {
	cfg := testCfg()
	state := withLastScore(90)
	state.RemainingTimeS = 300
	state.AskedSubTopics = []string{"성적"}
	assert.Equal(t, model.ActionNewTopic, route(state, cfg))
}

func TestLastScore_NoAnswersYetIsPerfect(t *testing.T) {
	assert.Equal(t, 100, lastScore(model.InterviewState{}))
}

func TestLastScore_UsesMostRecentAnswer(t *testing.T) {
	state := model.InterviewState{
		AnswerMetadata: []model.AnswerRecord{
			{Evaluation: model.Evaluation{Score: 40}},
			{Evaluation: model.Evaluation{Score: 72}},
		},
	}
	assert.Equal(t, 72, lastScore(state))
}
