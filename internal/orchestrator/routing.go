package orchestrator

import (
	"mockinterview-go/internal/config"
	"mockinterview-go/internal/model"
)

// route 实现 §4.6 的路由表：按顺序求值，第一个匹配的规则胜出。
// state 必须是 analyzer 节点刚产生的状态，此时 state.AnswerMetadata 的
// 最后一项携带本轮评价。
func route(state model.InterviewState, cfg config.InterviewConfig) model.Action {
	if state.RemainingTimeS < cfg.WrapUpThresholdS {
		return model.ActionWrapUp
	}
	if lastScore(state) < 60 && state.FollowUpCount < cfg.MaxFollowUps {
		return model.ActionFollowUp
	}
	if len(state.AskedSubTopics) >= cfg.MaxTopics {
		return model.ActionWrapUp
	}
	return model.ActionNewTopic
}

// lastScore 返回最近一次评价的分数；若尚无回答记录则视为满分，不触发追问。
func lastScore(state model.InterviewState) int {
	if len(state.AnswerMetadata) == 0 {
		return 100
	}
	return state.AnswerMetadata[len(state.AnswerMetadata)-1].Evaluation.Score
}
