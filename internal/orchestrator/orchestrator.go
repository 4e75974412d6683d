package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/config"
	"mockinterview-go/internal/model"
	"mockinterview-go/internal/repository"
	"mockinterview-go/pkg/log"
	"mockinterview-go/pkg/modelgateway"
	"mockinterview-go/pkg/tts"
	"mockinterview-go/pkg/vectorstore"
)

// Orchestrator 驱动按 thread_id 分区的面试状态机。每个 thread 的回合严格
// 串行化，用 sync.Map 持有的每线程互斥锁实现，而不是进程级全局锁
// （§9 明确要求），因为 checkpoint 提交只对同一服务器进程内的同一 thread
// 有意义。
type Orchestrator struct {
	gateway     modelgateway.Client
	vectorStore vectorstore.Store
	ttsClient   *tts.Client
	sessionRepo repository.SessionRepository
	checkpoints *checkpointStore
	cfg         config.InterviewConfig

	threadLocks sync.Map // thread_id -> *sync.Mutex
}

// New 创建一个新的 Orchestrator。
func New(
	gateway modelgateway.Client,
	vectorStore vectorstore.Store,
	ttsClient *tts.Client,
	sessionRepo repository.SessionRepository,
	checkpointRepo repository.CheckpointRepository,
	checkpointCache repository.CheckpointCacheRepository,
	cfg config.InterviewConfig,
) *Orchestrator {
	return &Orchestrator{
		gateway:     gateway,
		vectorStore: vectorStore,
		ttsClient:   ttsClient,
		sessionRepo: sessionRepo,
		checkpoints: newCheckpointStore(checkpointRepo, checkpointCache),
		cfg:         cfg,
	}
}

func (o *Orchestrator) lockFor(threadID string) *sync.Mutex {
	m, _ := o.threadLocks.LoadOrStore(threadID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// TurnResult 是每回合对外暴露的结果（§4.6 每回合契约）。
type TurnResult struct {
	NextQuestion string
	State        model.InterviewState
	Analysis     model.Evaluation
	IsFinished   bool
}

// Initialize 实现 initialize(record_id, difficulty, first_answer, response_time_s)。
func (o *Orchestrator) Initialize(ctx context.Context, recordID uint, userID uint, difficulty string, firstAnswer string, responseTimeS int) (string, TurnResult, error) {
	threadID := uuid.NewString()
	lock := o.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()

	state, err := initializeInterview(ctx, o.gateway, o.vectorStore, recordID, difficulty, o.cfg.RetrievalTopK)
	if err != nil {
		return "", TurnResult{}, err
	}
	state.RemainingTimeS = o.cfg.TotalTimeS

	if err := o.checkpoints.commit(ctx, threadID, "initialize_interview", state); err != nil {
		return "", TurnResult{}, err
	}

	session := &model.InterviewSession{
		ThreadID:   threadID,
		UserID:     userID,
		RecordID:   recordID,
		Difficulty: difficulty,
		Status:     model.SessionInProgress,
		StartedAt:  startedAtNow(),
	}
	if err := o.sessionRepo.Create(session); err != nil {
		return "", TurnResult{}, apperr.Storage("create interview session", err)
	}

	result, err := o.runTurnFrom(ctx, threadID, state, firstAnswer, responseTimeS)
	if err != nil {
		return "", TurnResult{}, err
	}
	return threadID, result, nil
}

// ChatTurn 实现 chat_turn(thread_id, answer, response_time_s)。
func (o *Orchestrator) ChatTurn(ctx context.Context, threadID string, answer string, responseTimeS int) (TurnResult, error) {
	lock := o.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()

	state, err := o.checkpoints.load(ctx, threadID)
	if err != nil {
		return TurnResult{}, err
	}
	return o.runTurnFrom(ctx, threadID, state, answer, responseTimeS)
}

// ChatTurnAudio 与 ChatTurn 语义相同，仅在两端多做一次转写/合成（§4.6 音频变体）。
func (o *Orchestrator) ChatTurnAudio(ctx context.Context, threadID string, audio []byte, mimeType string, responseTimeS int) (TurnResult, []byte, error) {
	answer, err := o.gateway.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return TurnResult{}, nil, err
	}
	result, err := o.ChatTurn(ctx, threadID, answer, responseTimeS)
	if err != nil {
		return TurnResult{}, nil, err
	}
	audioOut, err := o.ttsClient.Synthesize(ctx, result.NextQuestion)
	if err != nil {
		log.Warnf("[Orchestrator] tts synthesis failed for thread %s, returning text only: %v", threadID, err)
		return result, nil, nil
	}
	return result, audioOut, nil
}

// runTurnFrom 运行 analyzer → route → generator（或 wrap_up），每个节点提交
// 一次 Checkpoint，与 §4.6 每回合契约一致。
func (o *Orchestrator) runTurnFrom(ctx context.Context, threadID string, state model.InterviewState, answer string, responseTimeS int) (TurnResult, error) {
	analyzed, err := analyzer(ctx, o.gateway, state, answer, responseTimeS)
	if err != nil {
		return TurnResult{}, err
	}
	if err := o.checkpoints.commit(ctx, threadID, "analyzer", analyzed); err != nil {
		return TurnResult{}, err
	}
	latestAnalysis := analyzed.AnswerMetadata[len(analyzed.AnswerMetadata)-1].Evaluation

	action := route(analyzed, o.cfg)
	switch action {
	case model.ActionFollowUp:
		next, err := followUpGenerator(ctx, o.gateway, analyzed)
		if err != nil {
			return TurnResult{}, err
		}
		if err := o.checkpoints.commit(ctx, threadID, "follow_up_generator", next); err != nil {
			return TurnResult{}, err
		}
		return TurnResult{NextQuestion: next.PendingQuestion, State: next, Analysis: latestAnalysis}, nil

	case model.ActionNewTopic:
		withTopic, err := retrieveNewTopic(ctx, o.gateway, o.vectorStore, analyzed.RecordID, analyzed, o.cfg.RetrievalTopK)
		if err != nil {
			return TurnResult{}, err
		}
		if err := o.checkpoints.commit(ctx, threadID, "retrieve_new_topic", withTopic); err != nil {
			return TurnResult{}, err
		}
		withQuestion, err := newQuestionGenerator(ctx, o.gateway, withTopic)
		if err != nil {
			return TurnResult{}, err
		}
		if err := o.checkpoints.commit(ctx, threadID, "new_question_generator", withQuestion); err != nil {
			return TurnResult{}, err
		}
		return TurnResult{NextQuestion: withQuestion.PendingQuestion, State: withQuestion, Analysis: latestAnalysis}, nil

	default: // model.ActionWrapUp
		final, report, err := wrapUp(ctx, o.gateway, analyzed)
		if err != nil {
			return TurnResult{}, err
		}
		if err := o.checkpoints.commit(ctx, threadID, "wrap_up", final); err != nil {
			return TurnResult{}, err
		}
		if err := o.finalizeSession(ctx, threadID, final, report); err != nil {
			return TurnResult{}, err
		}
		return TurnResult{NextQuestion: final.PendingQuestion, State: final, Analysis: latestAnalysis, IsFinished: true}, nil
	}
}

func (o *Orchestrator) finalizeSession(ctx context.Context, threadID string, state model.InterviewState, report string) error {
	session, err := o.sessionRepo.GetByThreadID(threadID)
	if err != nil {
		return apperr.SessionNotFound
	}
	completedAt := startedAtNow()
	session.Status = model.SessionCompleted
	session.CompletedAt = &completedAt
	session.FinalReport = report
	session.TotalQuestions = len(state.AnswerMetadata)
	session.AvgResponseTime = averageResponseTime(state)
	session.TotalDurationS = int(completedAt.Sub(session.StartedAt).Seconds())
	if err := o.sessionRepo.Update(session); err != nil {
		return apperr.Storage("finalize interview session", err)
	}
	if err := o.checkpoints.cache.Invalidate(ctx, threadID); err != nil {
		log.Warnf("[Orchestrator] failed to invalidate checkpoint cache for thread %s: %v", threadID, err)
	}
	return nil
}

// Abandon 实现 abandon(thread_id)：把仍在进行中的会话标记为 ABANDONED，
// 并让下一次 load 回退到 MySQL（§4.7）。
func (o *Orchestrator) Abandon(ctx context.Context, threadID string) error {
	lock := o.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.sessionRepo.GetByThreadID(threadID)
	if err != nil {
		return apperr.SessionNotFound
	}
	if session.Status != model.SessionInProgress {
		return apperr.Conflict("session is not in progress")
	}
	if err := o.sessionRepo.Abandon(threadID); err != nil {
		return apperr.Storage("abandon interview session", err)
	}
	if err := o.checkpoints.cache.Invalidate(ctx, threadID); err != nil {
		log.Warnf("[Orchestrator] failed to invalidate checkpoint cache for thread %s: %v", threadID, err)
	}
	return nil
}

// GetLogs 实现 get_logs(thread_id)：从最新 Checkpoint 的 state_blob 里
// 重放出有序的 answer_metadata，而不是另开一张答案表（§4.7，§9）。
func (o *Orchestrator) GetLogs(ctx context.Context, threadID string) ([]model.AnswerRecord, error) {
	state, err := o.checkpoints.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return state.AnswerMetadata, nil
}

func averageResponseTime(state model.InterviewState) float64 {
	if len(state.AnswerMetadata) == 0 {
		return 0
	}
	total := 0
	for _, a := range state.AnswerMetadata {
		total += a.ResponseTimeS
	}
	return float64(total) / float64(len(state.AnswerMetadata))
}

func startedAtNow() time.Time {
	return time.Now()
}
