// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	TTS           TTSConfig           `mapstructure:"tts"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	QGen          QGenConfig          `mapstructure:"qgen"`
	Interview     InterviewConfig     `mapstructure:"interview"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers      string `mapstructure:"brokers"`
	IngestTopic  string `mapstructure:"ingest_topic"`
	QGenTopic    string `mapstructure:"qgen_topic"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"` // EMBEDDING_DIM，默认 768
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Retry      ModelRetryConfig    `mapstructure:"retry"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ModelRetryConfig 控制结构化输出重试与传输层退避重试。
type ModelRetryConfig struct {
	CallTimeoutMs  int `mapstructure:"call_timeout_ms"`  // MODEL_CALL_TIMEOUT_MS
	MaxRetries     int `mapstructure:"max_retries"`      // MODEL_MAX_RETRIES
	BackoffBaseMs  int `mapstructure:"backoff_base_ms"`  // BACKOFF_BASE_MS
	BackoffMaxMs   int `mapstructure:"backoff_max_ms"`   // BACKOFF_MAX_MS
	MaxConcurrency int `mapstructure:"max_concurrency"`  // MODEL_MAX_CONCURRENCY，进程级并发上限，默认 8
}

// TTSConfig 存储外部语音合成服务的配置（窄接口，业务逻辑不在核心范围内）。
type TTSConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Voice   string `mapstructure:"voice"`
}

// IngestConfig 控制生活记录（생기부）摄取流水线的批量与并行度。
type IngestConfig struct {
	BatchPages  int `mapstructure:"batch_pages"`  // INGEST_BATCH_PAGES，默认 3
	Parallelism int `mapstructure:"parallelism"`  // INGEST_PARALLELISM，默认 4
	RasterDPI   int `mapstructure:"raster_dpi"`   // 页面栅格化 DPI
}

// QGenConfig 控制题目生成流水线的并行度。
type QGenConfig struct {
	Parallelism int `mapstructure:"parallelism"` // QGEN_PARALLELISM，默认 4
}

// InterviewConfig 控制面试编排器的计时与路由阈值。
type InterviewConfig struct {
	TotalTimeS         int `mapstructure:"total_time_s"`          // INTERVIEW_TOTAL_TIME_S，默认 600
	WrapUpThresholdS   int `mapstructure:"wrap_up_threshold_s"`   // INTERVIEW_WRAP_UP_THRESHOLD_S，默认 30
	MaxTopics          int `mapstructure:"max_topics"`            // INTERVIEW_MAX_TOPICS，默认 8
	MaxFollowUps       int `mapstructure:"max_follow_ups"`        // INTERVIEW_MAX_FOLLOW_UPS，默认 3
	RetrievalTopK      int `mapstructure:"retrieval_top_k"`       // 每次话题切换检索的分块数量
}

// applyDefaults 为未显式配置的项填充 §6 规定的默认值。
func applyDefaults(c *Config) {
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Ingest.BatchPages == 0 {
		c.Ingest.BatchPages = 3
	}
	if c.Ingest.Parallelism == 0 {
		c.Ingest.Parallelism = 4
	}
	if c.Ingest.RasterDPI == 0 {
		c.Ingest.RasterDPI = 150
	}
	if c.QGen.Parallelism == 0 {
		c.QGen.Parallelism = 4
	}
	if c.LLM.Retry.MaxRetries == 0 {
		c.LLM.Retry.MaxRetries = 3
	}
	if c.LLM.Retry.CallTimeoutMs == 0 {
		c.LLM.Retry.CallTimeoutMs = 30000
	}
	if c.LLM.Retry.BackoffBaseMs == 0 {
		c.LLM.Retry.BackoffBaseMs = 200
	}
	if c.LLM.Retry.BackoffMaxMs == 0 {
		c.LLM.Retry.BackoffMaxMs = 5000
	}
	if c.LLM.Retry.MaxConcurrency == 0 {
		c.LLM.Retry.MaxConcurrency = 8
	}
	if c.Interview.TotalTimeS == 0 {
		c.Interview.TotalTimeS = 600
	}
	if c.Interview.WrapUpThresholdS == 0 {
		c.Interview.WrapUpThresholdS = 30
	}
	if c.Interview.MaxTopics == 0 {
		c.Interview.MaxTopics = 8
	}
	if c.Interview.MaxFollowUps == 0 {
		c.Interview.MaxFollowUps = 3
	}
	if c.Interview.RetrievalTopK == 0 {
		c.Interview.RetrievalTopK = 5
	}
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
	applyDefaults(&Conf)
}
