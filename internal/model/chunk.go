// Package model 定义了与数据库表对应的 Go 结构体。
package model

// Category 是生活记录分块的固定分类集合（§3）。
type Category string

const (
	CategoryGrades      Category = "성적" // 성적
	CategorySpecialty   Category = "세특" // 세특
	CategoryActivity    Category = "창체" // 창체
	CategoryBehavior    Category = "행특" // 행특
	CategoryAttendance  Category = "출결" // 출결
	CategoryReading     Category = "독서" // 독서
	CategoryAward       Category = "수상" // 수상
	CategoryPath        Category = "진로" // 진로
	CategoryMisc        Category = "기타" // 기타
)

// AllCategories 是分类的封闭集合，用于校验与遍历。
var AllCategories = []Category{
	CategoryGrades, CategorySpecialty, CategoryActivity, CategoryBehavior,
	CategoryAttendance, CategoryReading, CategoryAward, CategoryPath, CategoryMisc,
}

// IsValidCategory 判断给定字符串是否属于固定分类集合。
func IsValidCategory(c string) bool {
	for _, v := range AllCategories {
		if string(v) == c {
			return true
		}
	}
	return false
}

// Chunk 对应数据库中的 chunks 表：从 Record 中抽取的分类文本片段及其向量。
// (record_id, chunk_index) 唯一；embedding 的维度必须等于 Model Gateway 声明的维度。
type Chunk struct {
	ID         uint      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	RecordID   uint      `gorm:"not null;index:idx_record_chunk,unique,priority:1;column:record_id" json:"recordId"`
	ChunkIndex int       `gorm:"not null;index:idx_record_chunk,unique,priority:2;column:chunk_index" json:"chunkIndex"`
	Category   Category  `gorm:"type:varchar(10);not null;index;column:category" json:"category"`
	Body       string    `gorm:"type:text;not null;column:body" json:"body"`
	Embedding  []float32 `gorm:"-" json:"-"` // 持久化在向量存储的 ES 侧，关系表只保留文本与元数据
}

func (Chunk) TableName() string {
	return "chunks"
}
