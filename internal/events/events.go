// Package events 发布排班领域事件
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/paiban/shiftopt/internal/config"
	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/logger"
	"github.com/paiban/shiftopt/pkg/model"
)

// ScheduleGenerated 排班结果已保存
type ScheduleGenerated struct {
	ScheduleID    string             `json:"schedule_id"`
	TerminalState string             `json:"terminal_state"`
	CoverageRate  float64            `json:"coverage_rate"`
	FairnessScore float64            `json:"fairness_score"`
	Assignments   []model.Assignment `json:"assignments"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// Publisher 事件发布接口
type Publisher interface {
	PublishScheduleGenerated(ctx context.Context, evt ScheduleGenerated) error
	Close() error
}

// channel amqp091 通道中用到的部分，便于测试替换
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher 基于 RabbitMQ 的发布器，消息直接投递到持久化队列
type RabbitPublisher struct {
	conn    *amqp.Connection
	ch      channel
	queue   string
	timeout time.Duration
	mu      sync.Mutex // amqp 通道不能并发发布
}

// NewRabbitPublisher 连接 RabbitMQ 并声明队列
func NewRabbitPublisher(cfg *config.RabbitMQConfig) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodePublishError, "无法连接到 RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.CodePublishError, "无法建立通道")
	}

	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, errors.CodePublishError, "声明队列失败").WithField("queue", cfg.Queue)
	}

	logger.Info().Str("queue", cfg.Queue).Msg("RabbitMQ 连接成功")
	return &RabbitPublisher{conn: conn, ch: ch, queue: cfg.Queue, timeout: cfg.PublishTimeout}, nil
}

// PublishScheduleGenerated 发布排班生成事件
func (p *RabbitPublisher) PublishScheduleGenerated(ctx context.Context, evt ScheduleGenerated) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, errors.CodePublishError, "序列化事件失败")
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         "schedule.generated",
		Timestamp:    evt.GeneratedAt,
		Body:         body,
	})
	if err != nil {
		return errors.Wrap(err, errors.CodePublishError, "发布事件失败").WithField("schedule_id", evt.ScheduleID)
	}
	return nil
}

// Close 关闭通道与连接
func (p *RabbitPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher 未配置消息队列时使用
type NopPublisher struct{}

// PublishScheduleGenerated 丢弃事件
func (NopPublisher) PublishScheduleGenerated(context.Context, ScheduleGenerated) error { return nil }

// Close 无操作
func (NopPublisher) Close() error { return nil }
