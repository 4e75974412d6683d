// Package pipeline 定义了摄取与题目生成两条流水线的核心流程，泛化自老师
// 仓库 internal/pipeline/processor.go 的"下载→提取→分块→入库→向量化→索引"
// 骨架，把单一的通用文本提取换成生活记录（생기부）特有的按页 OCR/分类，
// 把单阶段索引换成按批次原子持久化并全程广播进度事件。
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/sourcegraph/conc/pool"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/config"
	"mockinterview-go/internal/model"
	"mockinterview-go/internal/repository"
	"mockinterview-go/pkg/log"
	"mockinterview-go/pkg/modelgateway"
	"mockinterview-go/pkg/progressstream"
	"mockinterview-go/pkg/storage"
	"mockinterview-go/pkg/tasks"
	"mockinterview-go/pkg/vectorstore"
)

// progressCounter 把"第几个完成"序列化成单调递增的计数，供并行 fan-out 里
// 每个 worker 各自完成时据此算百分比——而不是据自己的 batch/category 下标，
// 后者的完成顺序并不保证与下标顺序一致，会打破进度流的单调不减保证。
type progressCounter struct {
	mu        sync.Mutex
	completed int
}

func (c *progressCounter) increment() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed++
	return c.completed
}

// ocrBatchSchema 是"OCR + 分类"批次调用的固定结构化输出契约（§4.4）。
var ocrBatchSchema = modelgateway.Schema{
	Name:    "ocr_batch",
	IsArray: true,
	Required: []modelgateway.Field{
		{Name: "category", Type: modelgateway.FieldString},
		{Name: "chunk_text", Type: modelgateway.FieldString},
	},
}

type ocrChunkResult struct {
	Category  string `json:"category"`
	ChunkText string `json:"chunk_text"`
}

// IngestProcessor 驱动一次完整的摄取流水线运行。
type IngestProcessor struct {
	gateway     modelgateway.Client
	store       vectorstore.Store
	recordRepo  repository.RecordRepository
	progress    *progressstream.Bus
	minioCfg    config.MinIOConfig
	ingestCfg   config.IngestConfig
}

// NewIngestProcessor 创建一个新的 IngestProcessor。
func NewIngestProcessor(
	gateway modelgateway.Client,
	store vectorstore.Store,
	recordRepo repository.RecordRepository,
	progress *progressstream.Bus,
	minioCfg config.MinIOConfig,
	ingestCfg config.IngestConfig,
) *IngestProcessor {
	return &IngestProcessor{
		gateway:    gateway,
		store:      store,
		recordRepo: recordRepo,
		progress:   progress,
		minioCfg:   minioCfg,
		ingestCfg:  ingestCfg,
	}
}

// ingestJobID 生成用于 Progress Stream 索引的摄取任务标识。
func ingestJobID(recordID uint) string {
	return fmt.Sprintf("ingest:%d", recordID)
}

func (p *IngestProcessor) emit(recordID uint, stage string, percent int, message string) {
	p.progress.Publish(ingestJobID(recordID), progressstream.Event{Stage: stage, Percent: percent, Message: message})
}

func (p *IngestProcessor) fail(recordID uint, stage string, err error) error {
	log.Errorf("[Ingest] record %d failed at stage %s: %v", recordID, stage, err)
	if updErr := p.recordRepo.UpdateStatus(recordID, model.RecordFailed); updErr != nil {
		log.Errorf("[Ingest] failed to flip record %d to FAILED: %v", recordID, updErr)
	}
	p.progress.Publish(ingestJobID(recordID), progressstream.Event{Stage: stage, Percent: 0, Done: true, Error: err.Error()})
	return err
}

// Process 运行整条摄取流水线，实现 pkg/kafka.IngestProcessor。
func (p *IngestProcessor) Process(ctx context.Context, task tasks.IngestTask) error {
	recordID := task.RecordID
	log.Infof("[Ingest] starting record %d, blob %s", recordID, task.BlobKey)

	// 幂等重跑前先清理该 record 之前持久化的分块（§4.4 失败语义）。
	if err := p.store.DeleteByRecord(ctx, recordID); err != nil {
		return p.fail(recordID, "fetch", fmt.Errorf("purge prior chunks: %w", err))
	}
	if err := p.recordRepo.UpdateStatus(recordID, model.RecordProcessing); err != nil {
		return p.fail(recordID, "fetch", fmt.Errorf("mark record processing: %w", err))
	}

	// 1. Fetch (10-20%)
	p.emit(recordID, "fetch", 10, "downloading blob")
	pdfBytes, err := p.fetchBlob(ctx, task.BlobKey)
	if err != nil {
		return p.fail(recordID, "fetch", err)
	}
	p.emit(recordID, "fetch", 20, "blob downloaded")

	// 2. Page rasterization (20-30%)
	pages, err := rasterizePages(pdfBytes, p.ingestCfg.RasterDPI)
	if err != nil {
		return p.fail(recordID, "rasterize", err)
	}
	p.emit(recordID, "rasterize", 30, fmt.Sprintf("%d pages rasterized", len(pages)))

	// 3. OCR + categorization (30-70%)
	chunks, err := p.ocrAndCategorize(ctx, recordID, pages)
	if err != nil {
		return p.fail(recordID, "ocr_categorize", err)
	}

	// 4. Embedding + persistence (70-95%)
	if err := p.embedAndPersist(ctx, recordID, chunks); err != nil {
		return p.fail(recordID, "embed_persist", err)
	}

	// 5. Finalization (95-100%)
	p.emit(recordID, "finalize", 95, "flipping status to READY")
	if err := p.recordRepo.UpdateStatus(recordID, model.RecordReady); err != nil {
		return p.fail(recordID, "finalize", fmt.Errorf("mark record ready: %w", err))
	}
	p.emit(recordID, "finalize", 100, "ingest complete")
	p.progress.Publish(ingestJobID(recordID), progressstream.Event{Stage: "finalize", Percent: 100, Done: true})

	log.Infof("[Ingest] record %d ready with %d chunks", recordID, len(chunks))
	return nil
}

func (p *IngestProcessor) fetchBlob(ctx context.Context, blobKey string) ([]byte, error) {
	object, err := storage.MinioClient.GetObject(ctx, p.minioCfg.BucketName, blobKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperr.Storage("get blob from object storage", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		return nil, apperr.Storage("read blob stream", err)
	}
	if size == 0 {
		return nil, apperr.InvalidRequest("blob is empty")
	}
	return buf.Bytes(), nil
}

// batchOf 把 pages 切成大小为 B 的连续批次，保序。
func batchOf(pages [][]byte, batchSize int) [][][]byte {
	if batchSize <= 0 {
		batchSize = 1
	}
	var batches [][][]byte
	for i := 0; i < len(pages); i += batchSize {
		end := i + batchSize
		if end > len(pages) {
			end = len(pages)
		}
		batches = append(batches, pages[i:end])
	}
	return batches
}

// ocrAndCategorize 按 INGEST_BATCH_PAGES 分批调用 Model Gateway，批次间
// 用 conc 的有界 worker pool 并行到 INGEST_PARALLELISM，批次内保序聚合
// running chunk_index。
func (p *IngestProcessor) ocrAndCategorize(ctx context.Context, recordID uint, pages [][]byte) ([]model.Chunk, error) {
	batches := batchOf(pages, p.ingestCfg.BatchPages)
	if len(batches) == 0 {
		return nil, apperr.InvalidRequest("PDF has no pages")
	}

	results := make([][]ocrChunkResult, len(batches))
	pc := &progressCounter{}
	pl := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(p.ingestCfg.Parallelism)
	for i, batch := range batches {
		i, batch := i, batch
		pl.Go(func(ctx context.Context) error {
			batchResults, err := p.ocrBatch(ctx, batch)
			if err != nil {
				return fmt.Errorf("ocr batch %d: %w", i, err)
			}
			results[i] = batchResults
			done := pc.increment()
			completed := 30 + 40*done/len(batches)
			p.emit(recordID, "ocr_categorize", completed, fmt.Sprintf("ocr batch %d/%d done", i+1, len(batches)))
			return nil
		})
	}
	if err := pl.Wait(); err != nil {
		return nil, err
	}

	var chunks []model.Chunk
	chunkIndex := 0
	for _, batchResults := range results {
		for _, r := range batchResults {
			if !model.IsValidCategory(r.Category) {
				log.Warnf("[Ingest] record %d: model returned unknown category %q, coercing to 기타", recordID, r.Category)
				r.Category = string(model.CategoryMisc)
			}
			chunks = append(chunks, model.Chunk{
				RecordID:   recordID,
				ChunkIndex: chunkIndex,
				Category:   model.Category(r.Category),
				Body:       elidePII(r.ChunkText),
			})
			chunkIndex++
		}
	}
	return chunks, nil
}

func (p *IngestProcessor) ocrBatch(ctx context.Context, pageImages [][]byte) ([]ocrChunkResult, error) {
	prompt := buildOCRPrompt(len(pageImages))
	raw, err := p.gateway.Generate(ctx, prompt, ocrBatchSchema, nil)
	if err != nil {
		return nil, err
	}
	var results []ocrChunkResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, apperr.ModelSchema("decode ocr batch result", err)
	}
	return results, nil
}

func buildOCRPrompt(numPages int) string {
	return fmt.Sprintf(
		"다음 %d개의 생활기록부 페이지 이미지를 한 글자도 빠짐없이 그대로 옮겨 적으세요. "+
			"요약, 의역, 추론을 하지 마세요. 판독 불가능한 부분은 문자 그대로 \"[일부 텍스트 누락]\"으로 표시하세요. "+
			"이름, 학교명, 학번, 주민등록번호 등 개인식별정보는 모두 지우세요. "+
			"각 항목을 카테고리(성적/세특/창체/행특/출결/독서/수상/진로/기타) 중 하나로 분류하여 "+
			"{\"category\":...,\"chunk_text\":...} 객체의 JSON 배열로만 응답하세요.", numPages)
}

// embedAndPersist 计算每个分块的向量并原子持久化整批（§4.4 阶段 4）。
// 向量计算完成与批次持久化完成各自触发一次进度事件，与 §8 场景 1 的
// {85,95} 两个检查点对齐。
func (p *IngestProcessor) embedAndPersist(ctx context.Context, recordID uint, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return apperr.Internal("ocr stage produced no chunks", nil)
	}

	embeddings := make([][]float32, len(chunks))
	pl := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(p.ingestCfg.Parallelism)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		pl.Go(func(ctx context.Context) error {
			vec, err := p.gateway.Embed(ctx, chunk.Body)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := pl.Wait(); err != nil {
		return err
	}
	p.emit(recordID, "embed_persist", 85, "embeddings computed")

	if err := p.store.PutChunks(ctx, chunks, embeddings); err != nil {
		return err
	}
	p.emit(recordID, "embed_persist", 95, "vectors indexed")
	return nil
}
