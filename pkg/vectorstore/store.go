// Package vectorstore 将每条生活记录的分块正文与向量统一存放：正文/类别
// 等元数据落 MySQL（gorm），向量与检索走 Elasticsearch 的 dense_vector +
// kNN，对齐老师仓库 pkg/es 与 search_service.go 的两层分工，但把按用户/
// 组织标签过滤换成按 record_id + category 过滤。
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"gorm.io/gorm"

	"mockinterview-go/internal/apperr"
	"mockinterview-go/internal/model"
	"mockinterview-go/pkg/log"
)

// Store 是 Ingestion 流水线与 Question Generation / Interview Orchestrator
// 检索阶段共用的分块存取契约。
type Store interface {
	// PutChunks 原子地持久化一批分块：正文元数据写 MySQL，向量写 ES。
	// 两者以 (record_id, chunk_index) 为联合键对齐。
	PutChunks(ctx context.Context, chunks []model.Chunk, embeddings [][]float32) error
	// GetByCategory 返回某条记录下指定类别的全部分块，按 chunk_index 升序。
	GetByCategory(ctx context.Context, recordID uint, category string) ([]model.Chunk, error)
	// Search 返回某条记录下与 queryVector 余弦相似度最高的 topK 个分块；
	// category 非空时仅在该类别内检索。并列分数按 chunk_index 升序打破平局。
	Search(ctx context.Context, recordID uint, queryVector []float32, topK int, category string) ([]model.ScoredChunk, error)
	// DeleteByRecord 删除某条记录的全部分块（元数据与向量）。
	DeleteByRecord(ctx context.Context, recordID uint) error
}

type store struct {
	db        *gorm.DB
	es        *elasticsearch.Client
	indexName string
}

// NewStore 创建一个绑定到给定 MySQL/ES 连接与索引名的 Store。
func NewStore(db *gorm.DB, es *elasticsearch.Client, indexName string) Store {
	return &store{db: db, es: es, indexName: indexName}
}

// EnsureIndex 若索引不存在则创建，dense_vector 维度取自 embedding 配置，
// 与老师仓库 es.createIndexIfNotExists 同构，但维度不再硬编码为 2048。
func EnsureIndex(es *elasticsearch.Client, indexName string, dims int) error {
	res, err := es.Indices.Exists([]string{indexName})
	if err != nil {
		return fmt.Errorf("check index existence: %w", err)
	}
	if !res.IsError() && res.StatusCode == 200 {
		log.Infof("[VectorStore] index %q already exists", indexName)
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("unexpected status checking index %q: %d", indexName, res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id":   { "type": "keyword" },
				"record_id":   { "type": "long" },
				"chunk_index": { "type": "integer" },
				"category":    { "type": "keyword" },
				"body":        { "type": "text", "analyzer": "ik_max_word", "search_analyzer": "ik_smart" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dims)

	createRes, err := es.Indices.Create(indexName, es.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))))
	if err != nil {
		return fmt.Errorf("create index %q: %w", indexName, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		body, _ := io.ReadAll(createRes.Body)
		return fmt.Errorf("elasticsearch rejected index creation for %q: %s", indexName, string(body))
	}
	log.Infof("[VectorStore] created index %q", indexName)
	return nil
}

func vectorID(recordID uint, chunkIndex int) string {
	return fmt.Sprintf("%d_%d", recordID, chunkIndex)
}

// PutChunks 把正文元数据的 MySQL 写入与向量的 ES 写入绑定成一个整体：MySQL
// 插入发生在一个事务里，ES 批量索引在事务提交前完成，ES 失败会回滚 MySQL
// 插入；万一 ES 已成功但 MySQL 提交本身失败（连接丢失等罕见情形），用已写
// 入的 vector_id 反向删除 ES 文档做补偿，防止两边数据不对齐（§4.2：
// 整条记录的摄取要么整体成功要么整体不落地）。
func (s *store) PutChunks(ctx context.Context, chunks []model.Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(embeddings) {
		return apperr.Internal("chunks and embeddings length mismatch", nil)
	}

	vectorIDs := make([]string, len(chunks))
	for i, chunk := range chunks {
		vectorIDs[i] = vectorID(chunk.RecordID, chunk.ChunkIndex)
	}

	esIndexed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(chunks, 100).Error; err != nil {
			return apperr.Storage("persist chunk metadata", err)
		}
		if err := s.bulkIndexVectors(ctx, chunks, embeddings); err != nil {
			return err
		}
		esIndexed = true
		return nil
	})
	if err != nil && esIndexed {
		// MySQL 没能提交，但 ES 已经写入了这批向量；删掉它们，否则会变成
		// 没有对应元数据行、检索时仍能命中的悬挂文档。
		if delErr := s.deleteVectorsByID(ctx, vectorIDs); delErr != nil {
			log.Errorf("[VectorStore] compensating ES delete after MySQL commit failure failed: %v", delErr)
		}
	}
	return err
}

func (s *store) bulkIndexVectors(ctx context.Context, chunks []model.Chunk, embeddings [][]float32) error {
	var buf bytes.Buffer
	for i, chunk := range chunks {
		doc := model.EsChunkDocument{
			VectorID:   vectorID(chunk.RecordID, chunk.ChunkIndex),
			RecordID:   chunk.RecordID,
			ChunkIndex: chunk.ChunkIndex,
			Category:   string(chunk.Category),
			Body:       chunk.Body,
			Vector:     embeddings[i],
		}
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": s.indexName, "_id": doc.VectorID},
		}
		metaBytes, _ := json.Marshal(meta)
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return apperr.Internal("marshal chunk document", err)
		}
		buf.Write(metaBytes)
		buf.WriteByte('\n')
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	res, err := s.es.Bulk(bytes.NewReader(buf.Bytes()),
		s.es.Bulk.WithContext(ctx),
		s.es.Bulk.WithIndex(s.indexName),
		s.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return apperr.Storage("bulk index chunk vectors", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return apperr.Storage(fmt.Sprintf("elasticsearch bulk index failed: %s", string(body)), nil)
	}
	return nil
}

// deleteVectorsByID 按 vector_id 精确删除一批文档，用于 PutChunks 的提交后
// 补偿，范围严格限定在这一批，不影响该记录下其他已落地的分块。
func (s *store) deleteVectorsByID(ctx context.Context, vectorIDs []string) error {
	deleteQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"terms": map[string]interface{}{"vector_id": vectorIDs},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(deleteQuery); err != nil {
		return apperr.Internal("encode compensating delete-by-query", err)
	}
	req := esapi.DeleteByQueryRequest{Index: []string{s.indexName}, Body: &buf}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return apperr.Storage("elasticsearch compensating delete_by_query", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return apperr.Storage(fmt.Sprintf("elasticsearch compensating delete_by_query failed: %s", string(body)), nil)
	}
	return nil
}

func (s *store) GetByCategory(ctx context.Context, recordID uint, category string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	q := s.db.WithContext(ctx).Where("record_id = ?", recordID)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Order("chunk_index asc").Find(&chunks).Error; err != nil {
		return nil, apperr.Storage("query chunks by category", err)
	}
	return chunks, nil
}

func (s *store) Search(ctx context.Context, recordID uint, queryVector []float32, topK int, category string) ([]model.ScoredChunk, error) {
	filter := []map[string]interface{}{
		{"term": map[string]interface{}{"record_id": recordID}},
	}
	if category != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"category": category}})
	}

	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              topK,
			"num_candidates": topK * 10,
			"filter": map[string]interface{}{
				"bool": map[string]interface{}{"filter": filter},
			},
		},
		"size": topK,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, apperr.Internal("encode knn query", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.indexName),
		s.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, apperr.Storage("elasticsearch knn search", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, apperr.Storage(fmt.Sprintf("elasticsearch knn search returned error: %s", string(body)), nil)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunkDocument `json:"_source"`
				Score  float64               `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperr.Internal("decode knn search response", err)
	}

	results := make([]model.ScoredChunk, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, model.ScoredChunk{
			Chunk: model.Chunk{
				RecordID:   hit.Source.RecordID,
				ChunkIndex: hit.Source.ChunkIndex,
				Category:   model.Category(hit.Source.Category),
				Body:       hit.Source.Body,
			},
			Score: cosineSimilarityFromESScore(hit.Score),
		})
	}
	// ES 按 _score 降序返回；当分数并列时按 chunk_index 升序打破平局。
	stableSortByScoreThenIndex(results)
	return results, nil
}

// cosineSimilarityFromESScore 把 ES 原生 kNN 对 cosine 相似度的归一化
// ((1+cos)/2，值域 [0,1]) 还原成原始余弦相似度（值域 [-1,1]）。
func cosineSimilarityFromESScore(esScore float64) float64 {
	return 2*esScore - 1
}

func stableSortByScoreThenIndex(results []model.ScoredChunk) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0; j-- {
			a, b := results[j-1], results[j]
			if a.Score > b.Score || (a.Score == b.Score && a.Chunk.ChunkIndex <= b.Chunk.ChunkIndex) {
				break
			}
			results[j-1], results[j] = results[j], results[j-1]
		}
	}
}

func (s *store) DeleteByRecord(ctx context.Context, recordID uint) error {
	if err := s.db.WithContext(ctx).Where("record_id = ?", recordID).Delete(&model.Chunk{}).Error; err != nil {
		return apperr.Storage("delete chunk metadata", err)
	}

	deleteQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"record_id": recordID},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(deleteQuery); err != nil {
		return apperr.Internal("encode delete-by-query", err)
	}

	req := esapi.DeleteByQueryRequest{
		Index: []string{s.indexName},
		Body:  &buf,
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return apperr.Storage("elasticsearch delete_by_query", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return apperr.Storage(fmt.Sprintf("elasticsearch delete_by_query failed: %s", string(body)), nil)
	}
	return nil
}
