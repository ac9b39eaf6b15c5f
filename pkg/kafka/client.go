// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"knowledge-bot-go/internal/config"
	"knowledge-bot-go/pkg/log"
	"knowledge-bot-go/pkg/tasks"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IndexingTask) error
}

// AttemptCounter 记录同一条消息的失败次数，跨进程重启保留。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// RetryDelay 是同一条消息两次处理之间的等待时间。
var RetryDelay = 2 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 把索引任务发送到 Kafka。
type Producer struct {
	writer messageWriter
}

func brokerList(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokerList(cfg.Brokers)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	log.Infof("[Kafka] 生产者初始化成功, topic: %s", cfg.Topic)
	return &Producer{writer: w}
}

// PublishTask 发送一个索引任务到 Kafka。
func (p *Producer) PublishTask(ctx context.Context, task tasks.IndexingTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(task.Filename), Value: taskBytes}); err != nil {
		log.Errorf("[Kafka] 发送索引任务失败, file: %s, error: %v", task.Filename, err)
		return fmt.Errorf("publish indexing task: %w", err)
	}
	log.Infof("[Kafka] 索引任务已发送, file: %s", task.Filename)
	return nil
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理索引任务，直到 ctx 被取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, counter AttemptCounter) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokerList(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	log.Infof("[Kafka] 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	c := &consumer{reader: r, processor: processor, counter: counter, maxAttempts: cfg.MaxAttempts}
	c.run(ctx)

	if err := r.Close(); err != nil {
		log.Errorf("[Kafka] 关闭消费者失败: %v", err)
	}
}

type consumer struct {
	reader      messageReader
	processor   TaskProcessor
	counter     AttemptCounter
	maxAttempts int
}

func (c *consumer) run(ctx context.Context) {
	if c.maxAttempts <= 0 {
		c.maxAttempts = 3
	}
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info("[Kafka] 消费者收到退出信号")
			} else {
				log.Error("[Kafka] 从 Kafka 读取消息失败", err)
			}
			return
		}
		log.Infof("[Kafka] 收到消息: partition %d, offset %d", m.Partition, m.Offset)
		c.handle(ctx, m)
		if ctx.Err() != nil {
			return
		}
	}
}

// handle 处理一条消息：成功后提交；失败则重试，达到上限后提交 offset 终止重试。
// 进程在重试期间退出时不提交，消息会在重启后重新投递，失败次数保存在计数器中。
func (c *consumer) handle(ctx context.Context, m kafka.Message) {
	var task tasks.IndexingTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("[Kafka] 无法解析消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		c.commit(ctx, m)
		return
	}

	attemptsKey := fmt.Sprintf("kafka:attempts:%s:%d:%d", m.Topic, m.Partition, m.Offset)
	var localAttempts int64
	for {
		err := c.processor.Process(ctx, task)
		if err == nil {
			log.Infof("[Kafka] 索引任务处理成功: file=%s", task.Filename)
			_ = c.counter.Reset(ctx, attemptsKey)
			c.commit(ctx, m)
			return
		}
		log.Errorf("[Kafka] 处理索引任务失败: file=%s, error: %v", task.Filename, err)

		localAttempts++
		attempts, incErr := c.counter.Incr(ctx, attemptsKey)
		if incErr != nil {
			log.Warnf("[Kafka] 记录失败次数失败，使用本地计数: %v", incErr)
			attempts = localAttempts
		}
		if attempts >= int64(c.maxAttempts) {
			log.Errorf("[Kafka] 索引任务多次失败(>=%d)，提交 offset 终止重试: file=%s", c.maxAttempts, task.Filename)
			_ = c.counter.Reset(ctx, attemptsKey)
			c.commit(ctx, m)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(RetryDelay):
		}
	}
}

func (c *consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Errorf("[Kafka] 提交消息 offset 失败: %v", err)
	}
}
