// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"careercoach-go/internal/config"
	"careercoach-go/pkg/database"
	"careercoach-go/pkg/log"
	"careercoach-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

const maxAttempts = 3

// TaskProcessor 处理一条面试归档任务。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.InterviewArchiveTask) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 关闭生产者，刷新未发送的消息。
func CloseProducer() {
	if producer != nil {
		_ = producer.Close()
	}
}

// Publisher 把归档任务写入 Kafka，按 session_id 分区以保证同一会话有序。
type Publisher struct{}

// NewPublisher 返回一个使用全局生产者的 Publisher。
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishArchive 发送一个面试归档任务。
func (p *Publisher) PublishArchive(ctx context.Context, task tasks.InterviewArchiveTask) error {
	if producer == nil {
		return errors.New("kafka producer not initialized")
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.SessionID),
		Value: taskBytes,
	})
}

// retryPolicy 控制单条任务的就地重试。
// group reader 不会重新投递未提交的消息，后续消息一旦提交就会越过失败的那条，所以失败必须在原地重试。
type retryPolicy struct {
	maxAttempts int
	backoff     time.Duration
	after       func(time.Duration) <-chan time.Time
}

var defaultRetry = retryPolicy{maxAttempts: maxAttempts, backoff: time.Second, after: time.After}

func attemptsKey(sessionID string) string {
	return fmt.Sprintf("kafka:attempts:interview:%s", sessionID)
}

// processWithRetry 处理一条任务，失败后按指数退避重试，最多 maxAttempts 次。
// 尝试次数记在 Redis 中，进程在重试途中重启后不会重新获得完整的重试次数。rdb 为 nil 时只在本地计数。
// ctx 被取消时返回 ctx.Err()，调用方不应提交该消息。
func processWithRetry(ctx context.Context, rdb *redis.Client, processor TaskProcessor, task tasks.InterviewArchiveTask, policy retryPolicy) error {
	key := attemptsKey(task.SessionID)
	var lastErr error
	for local := int64(1); ; local++ {
		attempt := local
		if rdb != nil {
			if n, err := rdb.Incr(ctx, key).Result(); err == nil {
				attempt = n
				_ = rdb.Expire(ctx, key, 24*time.Hour).Err()
			}
		}
		if attempt > int64(policy.maxAttempts) {
			break
		}

		lastErr = processor.Process(ctx, task)
		if lastErr == nil {
			if rdb != nil {
				_ = rdb.Del(ctx, key).Err()
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Errorw("归档任务处理失败", "sessionId", task.SessionID, "attempt", attempt, "error", lastErr)
		if attempt >= int64(policy.maxAttempts) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-policy.after(policy.backoff << (attempt - 1)):
		}
	}

	if rdb != nil {
		_ = rdb.Del(ctx, key).Err()
	}
	if lastErr == nil {
		lastErr = errors.New("retry budget already spent")
	}
	return fmt.Errorf("archive task %s gave up after %d attempts: %w", task.SessionID, policy.maxAttempts, lastErr)
}

// StartConsumer 启动一个 Kafka 消费者处理归档任务，直到 ctx 被取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor) {
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "careercoach-archiver"
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		var task tasks.InterviewArchiveTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		err = processWithRetry(ctx, database.RDB, processor, task, defaultRetry)
		if ctx.Err() != nil {
			// 未提交的消息在重启后会重新投递
			break
		}
		if err != nil {
			log.Errorw("归档任务多次失败，提交 offset 放弃该任务", "sessionId", task.SessionID, "error", err)
		} else {
			log.Infow("归档任务处理成功", "sessionId", task.SessionID)
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}
