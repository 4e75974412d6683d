// Package model 定义了与数据库表对应的 Go 结构体。
package model

// EsChunkDocument 代表存储在 Elasticsearch 中的分块向量文档，是 Vector Store
// 的持久化载体。字段与 chunks 表一一对应，额外携带 dense_vector。
type EsChunkDocument struct {
	VectorID   string    `json:"vector_id"` // record_id + "_" + chunk_index
	RecordID   uint      `json:"record_id"`
	ChunkIndex int       `json:"chunk_index"`
	Category   string    `json:"category"`
	Body       string    `json:"body"`
	Vector     []float32 `json:"vector"`
}

// ScoredChunk 是 Vector Store 相似度检索的返回项：分块本体加相似度分数。
type ScoredChunk struct {
	Chunk Chunk
	Score float64 // cosine similarity, [-1, 1]
}
