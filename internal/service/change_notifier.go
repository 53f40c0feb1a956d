package service

import (
	"context"

	"go-gin-reservation-ledger/internal/cache"
	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/internal/queue"
	"go-gin-reservation-ledger/pkg/logger"

	"go.uber.org/zap"
)

// ChangeNotifier 寫入成功後更新本機看板，再送出變更事件與付款結果事件
// 失敗只記錄，不影響已完成的寫入
type ChangeNotifier struct {
	changes   queue.ChangeQueue
	decisions queue.DecisionPublisher
	board     cache.BalanceBoard
	log       *zap.Logger
}

// NewChangeNotifier 參數都可以為 nil
func NewChangeNotifier(changes queue.ChangeQueue, decisions queue.DecisionPublisher, board cache.BalanceBoard) *ChangeNotifier {
	return &ChangeNotifier{
		changes:   changes,
		decisions: decisions,
		board:     board,
		log:       logger.WithComponent("service"),
	}
}

func (n *ChangeNotifier) committed(ctx context.Context, r *model.Reservation, kind model.ChangeKind) {
	if n == nil {
		return
	}
	// 呼叫端取消不影響通知
	ctx = context.WithoutCancel(ctx)

	// 不等 worker，事件遺失時看板也不會停在舊版本
	n.refreshBoard(ctx, r, kind)

	if n.changes != nil {
		if err := n.changes.PublishChange(ctx, model.NewChangeEvent(r, kind)); err != nil {
			n.log.Error("Failed to publish change",
				zap.String("reservation_id", r.ID),
				zap.String("kind", string(kind)),
				zap.Int64("version", r.Version),
				zap.Error(err))
		}
	}

	if n.decisions != nil && (kind == model.ChangeKindConfirmed || kind == model.ChangeKindRejected) {
		if err := n.decisions.PublishDecision(ctx, model.NewDecisionEvent(r)); err != nil {
			n.log.Error("Failed to publish decision",
				zap.String("reservation_id", r.ID),
				zap.String("status", string(r.Status)),
				zap.Error(err))
		}
	}
}

func (n *ChangeNotifier) refreshBoard(ctx context.Context, r *model.Reservation, kind model.ChangeKind) {
	if n.board == nil {
		return
	}

	if kind == model.ChangeKindRemoved {
		if err := n.board.Evict(ctx, r.ID); err != nil {
			n.log.Warn("Balance board evict failed",
				zap.String("reservation_id", r.ID),
				zap.Error(err))
		}
		return
	}

	if _, err := n.board.Apply(ctx, model.NewBalanceView(r)); err != nil {
		n.log.Warn("Balance board write failed",
			zap.String("reservation_id", r.ID),
			zap.Int64("version", r.Version),
			zap.Error(err))
	}
}
