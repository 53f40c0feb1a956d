package worker

import (
	"context"
	"errors"

	"go-gin-reservation-ledger/internal/cache"
	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/internal/notify"
	"go-gin-reservation-ledger/internal/queue"
	"go-gin-reservation-ledger/internal/service"
	apperrors "go-gin-reservation-ledger/pkg/app_errors"
	"go-gin-reservation-ledger/pkg/logger"

	"go.uber.org/zap"
)

type ChangeWorker interface {
	// 訂閱變更佇列，直到 ctx 結束
	Start(ctx context.Context) error
}

// ChangeWorkerImpl 變更事件只代表「有東西變了」，一律重新讀取預約再更新看板
type ChangeWorkerImpl struct {
	reservations service.ReservationService
	queue        queue.ChangeQueue
	board        cache.BalanceBoard
	hub          *notify.Hub
	log          *zap.Logger
}

func NewChangeWorker(reservations service.ReservationService, queue queue.ChangeQueue, board cache.BalanceBoard, hub *notify.Hub) ChangeWorker {
	return &ChangeWorkerImpl{
		reservations: reservations,
		queue:        queue,
		board:        board,
		hub:          hub,
		log:          logger.WithComponent("worker"),
	}
}

func (w *ChangeWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.SubscribeChanges(ctx)
	if err != nil {
		return err
	}

	w.log.Info("Change worker started")
	for msg := range msgs {
		w.handle(ctx, msg)
	}
	w.log.Info("Change worker stopped")

	return nil
}

func (w *ChangeWorkerImpl) handle(ctx context.Context, msg queue.Delivery) {
	event := msg.Data
	log := w.log.With(
		zap.String("reservation_id", event.ReservationID),
		zap.String("kind", string(event.Kind)),
		zap.Int64("version", event.Version))

	if err := w.refresh(ctx, event); err != nil {
		// 儲存層或快取暫時無法使用，稍後重試
		log.Warn("Failed to refresh balance, requeue", zap.Error(err))
		msg.Nack(true)
		return
	}

	if w.hub != nil {
		w.hub.Broadcast(event)
	}
	msg.Ack()
}

func (w *ChangeWorkerImpl) refresh(ctx context.Context, event *model.ChangeEvent) error {
	current, err := w.reservations.Get(ctx, event.ReservationID)
	if errors.Is(err, apperrors.ErrReservationNotFound) {
		return w.board.Evict(ctx, event.ReservationID)
	}
	if err != nil {
		return err
	}

	_, err = w.board.Apply(ctx, model.NewBalanceView(current))
	return err
}
