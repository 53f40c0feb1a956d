package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DecisionPublisher 付款確認/拒絕後通知下游 (寄信、推播等)
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, event *model.DecisionEvent) error
	Close() error
}

// NopDecisionPublisher 沒有設定 broker 時使用
type NopDecisionPublisher struct{}

func NewNopDecisionPublisher() DecisionPublisher {
	return NopDecisionPublisher{}
}

func (NopDecisionPublisher) PublishDecision(ctx context.Context, event *model.DecisionEvent) error {
	return nil
}

func (NopDecisionPublisher) Close() error {
	return nil
}

// AMQPDecisionPublisher 發送到 RabbitMQ 的 durable queue，訊息為 persistent
// channel 不可併發使用，publish 以 mutex 序列化；連線中斷時下一次 publish 會重新連線
type AMQPDecisionPublisher struct {
	url   string
	queue string
	log   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPDecisionPublisher(url, queue string) (DecisionPublisher, error) {
	p := &AMQPDecisionPublisher{
		url:   url,
		queue: queue,
		log:   logger.WithComponent("mq"),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect 呼叫前需持有 mu
func (p *AMQPDecisionPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	p.conn = conn
	p.ch = ch
	return nil
}

// DecisionMessage 同一筆預約同一個狀態的 MessageId 相同，消費端可據此去重
func DecisionMessage(event *model.DecisionEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal decision: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s:%s", event.ReservationID, event.Status),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

func (p *AMQPDecisionPublisher) PublishDecision(ctx context.Context, event *model.DecisionEvent) error {
	msg, err := DecisionMessage(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		p.log.Warn("rabbitmq channel closed, reconnecting", zap.String("queue", p.queue))
		p.closeLocked()
		if err := p.connect(); err != nil {
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *AMQPDecisionPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPDecisionPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}
