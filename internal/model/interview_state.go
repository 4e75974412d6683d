// Package model 定义了与数据库表对应的 Go 结构体。
package model

// Role 是对话轮次的说话方。
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Turn 是会话历史里的一条消息。
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Stage 是面试所处的阶段。
type Stage string

const (
	StageIntro  Stage = "INTRO"
	StageMain   Stage = "MAIN"
	StageWrapUp Stage = "WRAP_UP"
)

// Action 是分析器路由决策的封闭标签变体（§9 重设计要求：优先使用封闭标签
// 变体而非字符串动态分派）。
type Action string

const (
	ActionFollowUp Action = "follow_up"
	ActionNewTopic Action = "new_topic"
	ActionWrapUp   Action = "wrap_up"
)

// Axis 是评分维度枚举。
type Axis string

const (
	AxisMajorFit       Axis = "전공적합성"
	AxisCharacter      Axis = "인성"
	AxisPotential      Axis = "발전가능성"
	AxisCommunication  Axis = "의사소통"
)

// Grade 是单次回答评价的等级。
type Grade string

const (
	GradeGood       Grade = "좋음"
	GradeAverage    Grade = "보통"
	GradeNeedsWork  Grade = "개선"
)

// GradeFor 根据 0..100 分数返回 §3 定义的等级边界（>=80 좋음, 60..79 보통, <60 개선）。
func GradeFor(score int) Grade {
	switch {
	case score >= 80:
		return GradeGood
	case score >= 60:
		return GradeAverage
	default:
		return GradeNeedsWork
	}
}

// Evaluation 是分析器对一次候选人回答的评价。
type Evaluation struct {
	Score        int      `json:"score"`
	Grade        Grade    `json:"grade"`
	Feedback     string   `json:"feedback"`
	StrengthTags []string `json:"strengthTags,omitempty"`
	WeaknessTags []string `json:"weaknessTags,omitempty"`
}

// AnswerRecord 是一次问答的完整记录，累加进 InterviewState.AnswerMetadata。
type AnswerRecord struct {
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	ResponseTimeS  int        `json:"responseTimeS"`
	SubTopic       string     `json:"subTopic"`
	Evaluation     Evaluation `json:"evaluation"`
	ContextUsed    []string   `json:"contextUsed"`
}

// TopicScoreMapping 是 §4.6 固定的子话题 → 评分维度映射。未列出的子话题被忽略。
var TopicScoreMapping = map[string]Axis{
	"성적":      AxisMajorFit,
	"동아리":     AxisMajorFit,
	"리더십":     AxisCharacter,
	"인성/태도":   AxisCharacter,
	"봉사":      AxisCharacter,
	"진로/자율":   AxisPotential,
	"독서":      AxisPotential,
	"출결":      AxisCommunication,
}

// SubTopics 是编排器在 retrieve_new_topic 节点中轮转选择的候选子话题集合，
// 取自原始实现（见 original_source/app/graphs/interview_graph.py）。
var SubTopics = []string{
	"출결", "성적", "동아리", "리더십", "인성/태도", "진로/자율", "독서", "봉사",
}

// InterviewState 是每个 thread 的可检查点状态。它是一条不可变记录：每个节点
// 都是纯函数 State -> State，持久化为一次 Checkpoint 追加写入（§9 设计说明）。
type InterviewState struct {
	RecordID          uint              `json:"recordId"`
	Difficulty        string            `json:"difficulty"`
	RemainingTimeS    int               `json:"remainingTimeS"`
	Stage             Stage             `json:"stage"`
	ConversationHistory []Turn          `json:"conversationHistory"`
	CurrentContext    []string          `json:"currentContext"`
	CurrentSubTopic   string            `json:"currentSubTopic"`
	AskedSubTopics    []string          `json:"askedSubTopics"`
	AnswerMetadata    []AnswerRecord    `json:"answerMetadata"`
	Scores            map[Axis]int      `json:"scores"`
	NextAction        Action            `json:"nextAction"`
	FollowUpCount     int               `json:"followUpCount"`
	PendingQuestion   string            `json:"pendingQuestion"` // 已发出、等待作答的最新面试官问题
}

// HasAskedSubTopic 判断某子话题是否已被使用（含当前话题）。
func (s InterviewState) HasAskedSubTopic(topic string) bool {
	if s.CurrentSubTopic == topic {
		return true
	}
	for _, t := range s.AskedSubTopics {
		if t == topic {
			return true
		}
	}
	return false
}

// Clone 生成状态的深拷贝，供节点在其上产生下一状态而不别名共享切片/映射。
func (s InterviewState) Clone() InterviewState {
	next := s
	next.ConversationHistory = append([]Turn(nil), s.ConversationHistory...)
	next.CurrentContext = append([]string(nil), s.CurrentContext...)
	next.AskedSubTopics = append([]string(nil), s.AskedSubTopics...)
	next.AnswerMetadata = append([]AnswerRecord(nil), s.AnswerMetadata...)
	next.Scores = make(map[Axis]int, len(s.Scores))
	for k, v := range s.Scores {
		next.Scores[k] = v
	}
	return next
}
