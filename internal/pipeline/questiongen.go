package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/config"
	"mockinterview-go/internal/model"
	"mockinterview-go/internal/repository"
	"mockinterview-go/pkg/log"
	"mockinterview-go/pkg/modelgateway"
	"mockinterview-go/pkg/progressstream"
	"mockinterview-go/pkg/tasks"
	"mockinterview-go/pkg/vectorstore"
)

const maxQuestionsPerCategory = 5

// questionBatchSchema 是"每个类别生成 ≤5 道题"调用的固定结构化输出契约（§4.5）。
var questionBatchSchema = modelgateway.Schema{
	Name:    "question_batch",
	IsArray: true,
	Required: []modelgateway.Field{
		{Name: "body", Type: modelgateway.FieldString},
		{Name: "difficulty", Type: modelgateway.FieldString},
		{Name: "model_answer", Type: modelgateway.FieldString},
		{Name: "purpose", Type: modelgateway.FieldString},
	},
}

type generatedQuestion struct {
	Body        string `json:"body"`
	Difficulty  string `json:"difficulty"`
	ModelAnswer string `json:"model_answer"`
	Purpose     string `json:"purpose"`
}

// QuestionGenProcessor 驱动一次题目生成流水线运行，实现 pkg/kafka.QuestionGenProcessor。
type QuestionGenProcessor struct {
	gateway     modelgateway.Client
	store       vectorstore.Store
	recordRepo  repository.RecordRepository
	setRepo     repository.QuestionSetRepository
	progress    *progressstream.Bus
	qgenCfg     config.QGenConfig
}

// NewQuestionGenProcessor 创建一个新的 QuestionGenProcessor。
func NewQuestionGenProcessor(
	gateway modelgateway.Client,
	store vectorstore.Store,
	recordRepo repository.RecordRepository,
	setRepo repository.QuestionSetRepository,
	progress *progressstream.Bus,
	qgenCfg config.QGenConfig,
) *QuestionGenProcessor {
	return &QuestionGenProcessor{
		gateway:    gateway,
		store:      store,
		recordRepo: recordRepo,
		setRepo:    setRepo,
		progress:   progress,
		qgenCfg:    qgenCfg,
	}
}

func questionGenJobID(recordID uint) string {
	return fmt.Sprintf("qgen:%d", recordID)
}

// Process 对一条 READY 记录跑完整个题目生成流水线（§4.5）。
func (p *QuestionGenProcessor) Process(ctx context.Context, task tasks.QuestionGenTask) error {
	jobID := questionGenJobID(task.RecordID)
	record, err := p.recordRepo.GetByID(task.RecordID)
	if err != nil {
		return apperr.NotFound(fmt.Sprintf("record %d not found", task.RecordID))
	}
	if record.Status != model.RecordReady {
		err := apperr.RecordNotReady
		p.progress.Publish(jobID, progressstream.Event{Stage: "precondition", Done: true, Error: err.Error()})
		return err
	}

	categories, err := p.categoriesPresent(ctx, task.RecordID)
	if err != nil {
		return p.fail(jobID, err)
	}
	if len(categories) == 0 {
		err := apperr.Precondition("record has no ingested chunks")
		return p.fail(jobID, err)
	}

	p.progress.Publish(jobID, progressstream.Event{Stage: "retrieve_generate", Percent: 5, Message: fmt.Sprintf("generating for %d categories", len(categories))})

	perCategory := make([][]model.Question, len(categories))
	pc := &progressCounter{}
	pl := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(p.qgenCfg.Parallelism)
	for i, category := range categories {
		i, category := i, category
		pl.Go(func(ctx context.Context) error {
			questions, err := p.generateForCategory(ctx, task.RecordID, category)
			if err != nil {
				return fmt.Errorf("category %s: %w", category, err)
			}
			perCategory[i] = questions
			done := pc.increment()
			progressPct := 5 + 85*done/len(categories)
			p.progress.Publish(jobID, progressstream.Event{
				Stage: "retrieve_generate", Percent: progressPct,
				Message: fmt.Sprintf("category %s done (%d questions)", category, len(questions)),
			})
			return nil
		})
	}
	if err := pl.Wait(); err != nil {
		return p.fail(jobID, err)
	}

	var allQuestions []model.Question
	for _, qs := range perCategory {
		allQuestions = append(allQuestions, qs...)
	}

	set := &model.QuestionSet{
		RecordID:      task.RecordID,
		TargetSchool:  task.TargetSchool,
		TargetMajor:   task.TargetMajor,
		InterviewType: task.InterviewType,
		Title:         fmt.Sprintf("%s %s 모의면접 문항", task.TargetSchool, task.TargetMajor),
		Questions:     allQuestions,
	}
	if err := p.setRepo.Create(set); err != nil {
		return p.fail(jobID, apperr.Storage("persist question set", err))
	}

	p.progress.Publish(jobID, progressstream.Event{
		Stage: "complete", Percent: 100, Done: true,
		Message: fmt.Sprintf("question_set_id=%d", set.ID),
	})
	log.Infof("[QuestionGen] record %d: created question set %d with %d questions", task.RecordID, set.ID, len(allQuestions))
	return nil
}

func (p *QuestionGenProcessor) fail(jobID string, err error) error {
	log.Errorf("[QuestionGen] job %s failed: %v", jobID, err)
	p.progress.Publish(jobID, progressstream.Event{Stage: "error", Done: true, Error: err.Error()})
	return err
}

// categoriesPresent 返回该记录下实际存在分块的类别集合，按固定枚举顺序。
func (p *QuestionGenProcessor) categoriesPresent(ctx context.Context, recordID uint) ([]model.Category, error) {
	var present []model.Category
	for _, category := range model.AllCategories {
		chunks, err := p.store.GetByCategory(ctx, recordID, string(category))
		if err != nil {
			return nil, apperr.Storage("list chunks by category", err)
		}
		if len(chunks) > 0 {
			present = append(present, category)
		}
	}
	return present, nil
}

// generateForCategory 检索某类别下的全部分块，向 Model Gateway 请求 ≤5 道
// 严格基于这些分块的题目。
func (p *QuestionGenProcessor) generateForCategory(ctx context.Context, recordID uint, category model.Category) ([]model.Question, error) {
	chunks, err := p.store.GetByCategory(ctx, recordID, string(category))
	if err != nil {
		return nil, apperr.Storage("fetch category chunks", err)
	}

	prompt := buildQuestionGenPrompt(category, chunks)
	raw, err := p.gateway.Generate(ctx, prompt, questionBatchSchema, nil)
	if err != nil {
		return nil, err
	}

	var generated []generatedQuestion
	if err := json.Unmarshal(raw, &generated); err != nil {
		return nil, apperr.ModelSchema("decode question batch", err)
	}
	if len(generated) > maxQuestionsPerCategory {
		generated = generated[:maxQuestionsPerCategory]
	}

	questions := make([]model.Question, 0, len(generated))
	for _, g := range generated {
		questions = append(questions, model.Question{
			Category:    category,
			Body:        g.Body,
			Difficulty:  difficultyFromString(g.Difficulty),
			ModelAnswer: g.ModelAnswer,
			Purpose:     g.Purpose,
		})
	}
	return questions, nil
}

func difficultyFromString(s string) model.Difficulty {
	if model.Difficulty(s) == model.DifficultyDeep {
		return model.DifficultyDeep
	}
	return model.DifficultyBasic
}

func buildQuestionGenPrompt(category model.Category, chunks []model.Chunk) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("다음은 학생 생활기록부의 '%s' 항목에서 추출한 내용입니다:\n\n", category))
	for _, c := range chunks {
		sb.WriteString(fmt.Sprintf("- %s\n", c.Body))
	}
	sb.WriteString(fmt.Sprintf(
		"\n위 내용에만 근거하여 면접 질문을 최대 5개까지 생성하세요. "+
			"내용에 없는 사실을 추론하거나 지어내지 마세요. "+
			"각 질문에 대해 {\"body\":..., \"difficulty\":\"BASIC\"|\"DEEP\", \"model_answer\":..., \"purpose\":...} "+
			"객체의 JSON 배열로만 응답하세요."))
	return sb.String()
}
