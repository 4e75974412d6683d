package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/model"
	"mockinterview-go/pkg/modelgateway"
	"mockinterview-go/pkg/vectorstore"
)

var evaluationSchema = modelgateway.Schema{
	Name: "answer_evaluation",
	Required: []modelgateway.Field{
		{Name: "score", Type: modelgateway.FieldInt},
		{Name: "feedback", Type: modelgateway.FieldString},
		{Name: "strength_tags", Type: modelgateway.FieldArray},
		{Name: "weakness_tags", Type: modelgateway.FieldArray},
	},
}

var questionSchema = modelgateway.Schema{
	Name: "interview_question",
	Required: []modelgateway.Field{
		{Name: "question", Type: modelgateway.FieldString},
	},
}

var reportSchema = modelgateway.Schema{
	Name: "final_report",
	Required: []modelgateway.Field{
		{Name: "report", Type: modelgateway.FieldString},
	},
}

type questionOut struct {
	Question string `json:"question"`
}

type reportOut struct {
	Report string `json:"report"`
}

// difficultyGenerationParams 把 InterviewSession 的难度（Easy/Normal/Hard）
// 映射成生成参数（§9 补充：温度随难度调整，取自 original_source）。
func difficultyGenerationParams(difficulty string) *modelgateway.GenerationParams {
	temp := 0.5
	if difficulty == "Hard" {
		temp = 0.8
	}
	return &modelgateway.GenerationParams{Temperature: &temp}
}

// initializeInterview 是 initialize_interview 节点：打开会话，选定开场子话题，
// 检索种子上下文，生成第一个问题。
func initializeInterview(ctx context.Context, gateway modelgateway.Client, vs vectorstore.Store, recordID uint, difficulty string, topK int) (model.InterviewState, error) {
	state := model.InterviewState{
		RecordID:            recordID,
		Difficulty:          difficulty,
		Stage:                model.StageIntro,
		ConversationHistory:  []model.Turn{},
		AskedSubTopics:       []string{},
		AnswerMetadata:       []model.AnswerRecord{},
		Scores:               map[model.Axis]int{},
		CurrentSubTopic:      model.SubTopics[0],
	}

	retrieved, err := retrieveContext(ctx, gateway, vs, recordID, state.CurrentSubTopic, topK)
	if err != nil {
		return state, err
	}
	state.CurrentContext = retrieved

	question, err := generateQuestion(ctx, gateway, state, "면접의 첫 질문을 생성하세요.")
	if err != nil {
		return state, err
	}
	state.PendingQuestion = question
	state.ConversationHistory = append(state.ConversationHistory, model.Turn{Role: model.RoleInterviewer, Text: question})
	return state, nil
}

// analyzer 节点：评价候选人刚提交的回答，追加 AnswerRecord，累加评分维度。
func analyzer(ctx context.Context, gateway modelgateway.Client, state model.InterviewState, answer string, responseTimeS int) (model.InterviewState, error) {
	next := state.Clone()
	next.ConversationHistory = append(next.ConversationHistory, model.Turn{Role: model.RoleCandidate, Text: answer})
	next.RemainingTimeS -= responseTimeS
	if next.RemainingTimeS < 0 {
		next.RemainingTimeS = 0
	}

	prompt := fmt.Sprintf(
		"면접 질문: %s\n후보자 답변: %s\n0-100점으로 채점하고 피드백을 작성하세요. "+
			"답변에서 드러난 강점과 약점을 각각 짧은 태그 목록으로 뽑아내세요. "+
			"{\"score\":0-100 정수, \"feedback\":\"...\", \"strength_tags\":[\"...\"], \"weakness_tags\":[\"...\"]} "+
			"형식의 JSON으로만 응답하세요.",
		next.PendingQuestion, answer)
	raw, err := gateway.Generate(ctx, prompt, evaluationSchema, nil)
	if err != nil {
		return state, err
	}
	var out struct {
		Score        int      `json:"score"`
		Feedback     string   `json:"feedback"`
		StrengthTags []string `json:"strength_tags"`
		WeaknessTags []string `json:"weakness_tags"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return state, apperr.ModelSchema("decode answer evaluation", err)
	}

	eval := model.Evaluation{
		Score:        out.Score,
		Grade:        model.GradeFor(out.Score),
		Feedback:     out.Feedback,
		StrengthTags: out.StrengthTags,
		WeaknessTags: out.WeaknessTags,
	}
	next.AnswerMetadata = append(next.AnswerMetadata, model.AnswerRecord{
		Question:      next.PendingQuestion,
		Answer:        answer,
		ResponseTimeS: responseTimeS,
		SubTopic:      next.CurrentSubTopic,
		Evaluation:    eval,
		ContextUsed:   next.CurrentContext,
	})

	if axis, ok := model.TopicScoreMapping[next.CurrentSubTopic]; ok {
		next.Scores[axis] += out.Score
	}
	next.Stage = model.StageMain
	return next, nil
}

// followUpGenerator 节点：在同一子话题上产生更深的追问。
func followUpGenerator(ctx context.Context, gateway modelgateway.Client, state model.InterviewState) (model.InterviewState, error) {
	next := state.Clone()
	next.FollowUpCount++

	question, err := generateQuestion(ctx, gateway, next,
		fmt.Sprintf("후보자의 답변이 충분하지 않았습니다. '%s' 주제에 대해 더 깊이 파고드는 후속 질문을 생성하세요.", next.CurrentSubTopic))
	if err != nil {
		return state, err
	}
	next.PendingQuestion = question
	next.ConversationHistory = append(next.ConversationHistory, model.Turn{Role: model.RoleInterviewer, Text: question})
	return next, nil
}

// retrieveNewTopic 节点：选择一个未问过的子话题，检索新上下文。
func retrieveNewTopic(ctx context.Context, gateway modelgateway.Client, vs vectorstore.Store, recordID uint, state model.InterviewState, topK int) (model.InterviewState, error) {
	next := state.Clone()
	if next.CurrentSubTopic != "" {
		next.AskedSubTopics = append(next.AskedSubTopics, next.CurrentSubTopic)
	}

	topic := nextUnusedSubTopic(next)
	if topic == "" {
		// 所有子话题均已覆盖；保留当前话题，路由会在下一次 analyzer 评估时触发 wrap_up。
		return next, nil
	}

	retrieved, err := retrieveContext(ctx, gateway, vs, recordID, topic, topK)
	if err != nil {
		return state, err
	}
	next.CurrentSubTopic = topic
	next.CurrentContext = retrieved
	next.FollowUpCount = 0
	return next, nil
}

// nextUnusedSubTopic 从固定子话题集合中选出第一个尚未被问过的。
func nextUnusedSubTopic(state model.InterviewState) string {
	for _, topic := range model.SubTopics {
		if !state.HasAskedSubTopic(topic) {
			return topic
		}
	}
	return ""
}

// newQuestionGenerator 节点：在新话题上生成开场问题。
func newQuestionGenerator(ctx context.Context, gateway modelgateway.Client, state model.InterviewState) (model.InterviewState, error) {
	next := state.Clone()
	question, err := generateQuestion(ctx, gateway, next,
		fmt.Sprintf("'%s' 주제에 대한 새로운 질문을 생성하세요.", next.CurrentSubTopic))
	if err != nil {
		return state, err
	}
	next.PendingQuestion = question
	next.ConversationHistory = append(next.ConversationHistory, model.Turn{Role: model.RoleInterviewer, Text: question})
	return next, nil
}

// wrapUp 节点：生成结语与最终报告，标记阶段结束。
func wrapUp(ctx context.Context, gateway modelgateway.Client, state model.InterviewState) (model.InterviewState, string, error) {
	next := state.Clone()
	next.Stage = model.StageWrapUp

	prompt := buildWrapUpPrompt(next)
	raw, err := gateway.Generate(ctx, prompt, reportSchema, nil)
	if err != nil {
		return state, "", err
	}
	var out reportOut
	if err := json.Unmarshal(raw, &out); err != nil {
		return state, "", apperr.ModelSchema("decode final report", err)
	}

	next.PendingQuestion = "면접을 종료합니다. 수고하셨습니다."
	next.ConversationHistory = append(next.ConversationHistory, model.Turn{Role: model.RoleInterviewer, Text: next.PendingQuestion})
	return next, out.Report, nil
}

func buildWrapUpPrompt(state model.InterviewState) string {
	return fmt.Sprintf(
		"다음은 모의 면접의 전체 평가 기록입니다 (%d개 답변). 점수 합계: %v. "+
			"지원자의 강점과 개선점을 포함한 최종 평가 리포트를 작성하세요. "+
			"{\"report\":\"...\"} 형식의 JSON으로만 응답하세요.",
		len(state.AnswerMetadata), state.Scores)
}

// retrieveContext 把子话题作为检索种子，向量化后取 topK 个分块正文。
func retrieveContext(ctx context.Context, gateway modelgateway.Client, vs vectorstore.Store, recordID uint, topic string, topK int) ([]string, error) {
	seed, err := gateway.Embed(ctx, topic)
	if err != nil {
		return nil, err
	}
	scored, err := vs.Search(ctx, recordID, seed, topK, "")
	if err != nil {
		return nil, err
	}
	chunks := make([]string, 0, len(scored))
	for _, s := range scored {
		chunks = append(chunks, s.Chunk.Body)
	}
	return chunks, nil
}

// generateQuestion 基于当前上下文和指令生成面试官的下一句话。
func generateQuestion(ctx context.Context, gateway modelgateway.Client, state model.InterviewState, instruction string) (string, error) {
	prompt := fmt.Sprintf(
		"%s\n\n참고 맥락:\n%s\n\n지시사항: %s\n{\"question\":\"...\"} 형식의 JSON으로만 응답하세요.",
		interviewPreamble(state.Difficulty), joinContext(state.CurrentContext), instruction)
	raw, err := gateway.Generate(ctx, prompt, questionSchema, difficultyGenerationParams(state.Difficulty))
	if err != nil {
		return "", err
	}
	var out questionOut
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperr.ModelSchema("decode interview question", err)
	}
	return out.Question, nil
}

func interviewPreamble(difficulty string) string {
	return fmt.Sprintf("당신은 대학 입학사정관입니다. 난이도: %s.", difficulty)
}

func joinContext(chunks []string) string {
	if len(chunks) == 0 {
		return "(없음)"
	}
	out := ""
	for _, c := range chunks {
		out += "- " + c + "\n"
	}
	return out
}
