package queue

import (
	"context"
	"errors"

	"go-gin-reservation-ledger/internal/model"
)

// ErrQueueFull 記憶體佇列已滿，變更事件被丟棄
var ErrQueueFull = errors.New("change queue is full")

type Delivery struct {
	Data *model.ChangeEvent
	Ack  func()
	Nack func(requeue bool)
}

type ChangeQueue interface {
	// 發送變更事件
	PublishChange(ctx context.Context, event *model.ChangeEvent) error
	// 訂閱變更事件
	SubscribeChanges(ctx context.Context) (<-chan Delivery, error)
}

// ChangeQueueImpl 單機版，以 channel 模擬 MQ
type ChangeQueueImpl struct {
	ch chan *model.ChangeEvent
}

func NewChangeQueue(bufferSize int) ChangeQueue {
	return &ChangeQueueImpl{
		ch: make(chan *model.ChangeEvent, bufferSize),
	}
}

// PublishChange 不會阻塞呼叫端，佇列滿時回傳 ErrQueueFull
func (q *ChangeQueueImpl) PublishChange(ctx context.Context, event *model.ChangeEvent) error {
	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *ChangeQueueImpl) SubscribeChanges(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-q.ch:
				if !ok {
					return
				}

				d := Delivery{
					Data: event,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if requeue {
							// 放回佇列尾端，滿了就丟棄
							select {
							case q.ch <- event:
							default:
							}
						}
					},
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
