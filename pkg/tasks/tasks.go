// Package tasks 定义了投递到 Kafka 的任务载荷结构。
package tasks

// IngestTask 表示一次生活记录（생기부）摄取任务：从对象存储取出 PDF，
// 走完 OCR/分类/向量化/入库的完整流水线。
type IngestTask struct {
	RecordID uint   `json:"record_id"`
	BlobKey  string `json:"blob_key"`
}

// QuestionGenTask 表示一次题目生成任务：针对某条已 READY 的记录，
// 按类别检索并生成一整套面试题。
type QuestionGenTask struct {
	RecordID      uint   `json:"record_id"`
	TargetSchool  string `json:"target_school"`
	TargetMajor   string `json:"target_major"`
	InterviewType string `json:"interview_type"`
}
