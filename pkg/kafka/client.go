// Package kafka 提供了与 Kafka 消息队列交互的功能。摄取与题目生成各自
// 拥有独立的主题与消费者组，互不阻塞。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"mockinterview-go/internal/config"
	"mockinterview-go/pkg/database"
	"mockinterview-go/pkg/log"
	"mockinterview-go/pkg/tasks"
)

// IngestProcessor 处理单条摄取任务。
type IngestProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

// QuestionGenProcessor 处理单条题目生成任务。
type QuestionGenProcessor interface {
	Process(ctx context.Context, task tasks.QuestionGenTask) error
}

var (
	ingestProducer *kafka.Writer
	qgenProducer   *kafka.Writer
)

// InitProducers 初始化摄取与题目生成两个 Kafka 生产者。
func InitProducers(cfg config.KafkaConfig) {
	ingestProducer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.IngestTopic,
		Balancer: &kafka.LeastBytes{},
	}
	qgenProducer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.QGenTopic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功 (ingest + qgen)")
}

// ProduceIngestTask 发送一个摄取任务到 Kafka。
func ProduceIngestTask(task tasks.IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return ingestProducer.WriteMessages(context.Background(), kafka.Message{Value: taskBytes})
}

// ProduceQuestionGenTask 发送一个题目生成任务到 Kafka。
func ProduceQuestionGenTask(task tasks.QuestionGenTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return qgenProducer.WriteMessages(context.Background(), kafka.Message{Value: taskBytes})
}

// StartIngestConsumer 启动摄取任务的消费者循环。
func StartIngestConsumer(cfg config.KafkaConfig, processor IngestProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.IngestTopic,
		GroupID:  "mockinterview-go-ingest-consumer",
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	log.Infof("Kafka 摄取消费者已启动，正在监听主题 '%s'", cfg.IngestTopic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取摄取消息失败", err)
			break
		}

		var task tasks.IngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析摄取消息: %v, value: %s", err, string(m.Value))
			_ = r.CommitMessages(context.Background(), m)
			continue
		}

		log.Infof("开始处理摄取任务: RecordID=%d", task.RecordID)
		if err := processor.Process(context.Background(), task); err != nil {
			log.Errorf("处理摄取任务失败: RecordID=%d, Error: %v", task.RecordID, err)
			if shouldRetire(fmt.Sprintf("kafka:ingest:attempts:%d", task.RecordID)) {
				_ = r.CommitMessages(context.Background(), m)
			}
		} else {
			log.Infof("摄取任务处理成功: RecordID=%d", task.RecordID)
			_ = database.RDB.Del(context.Background(), fmt.Sprintf("kafka:ingest:attempts:%d", task.RecordID)).Err()
			_ = r.CommitMessages(context.Background(), m)
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 摄取消费者失败: %v", err)
	}
}

// StartQuestionGenConsumer 启动题目生成任务的消费者循环。
func StartQuestionGenConsumer(cfg config.KafkaConfig, processor QuestionGenProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.QGenTopic,
		GroupID:  "mockinterview-go-qgen-consumer",
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	log.Infof("Kafka 题目生成消费者已启动，正在监听主题 '%s'", cfg.QGenTopic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取题目生成消息失败", err)
			break
		}

		var task tasks.QuestionGenTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析题目生成消息: %v, value: %s", err, string(m.Value))
			_ = r.CommitMessages(context.Background(), m)
			continue
		}

		log.Infof("开始处理题目生成任务: RecordID=%d", task.RecordID)
		if err := processor.Process(context.Background(), task); err != nil {
			log.Errorf("处理题目生成任务失败: RecordID=%d, Error: %v", task.RecordID, err)
			if shouldRetire(fmt.Sprintf("kafka:qgen:attempts:%d", task.RecordID)) {
				_ = r.CommitMessages(context.Background(), m)
			}
		} else {
			log.Infof("题目生成任务处理成功: RecordID=%d", task.RecordID)
			_ = database.RDB.Del(context.Background(), fmt.Sprintf("kafka:qgen:attempts:%d", task.RecordID)).Err()
			_ = r.CommitMessages(context.Background(), m)
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 题目生成消费者失败: %v", err)
	}
}

// shouldRetire 用 Redis 计数一个失败键的重试次数，达到 3 次后返回 true，
// 调用方据此提交 offset 终止重试；Redis 异常时保守地不终止，让 Kafka 继续重试。
func shouldRetire(attemptsKey string) bool {
	attempts, err := database.RDB.Incr(context.Background(), attemptsKey).Result()
	if err != nil {
		return false
	}
	_ = database.RDB.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
	return attempts >= 3
}
