package service

import (
	"context"

	"go-gin-reservation-ledger/internal/cache"
	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/pkg/logger"

	"go.uber.org/zap"
)

type EventService interface {
	// 活動資訊與是否開放預約
	Info(ctx context.Context) (*model.EventInfo, error)
	// 開放或關閉預約，已建立的預約不受影響
	SetSalesOpen(ctx context.Context, open bool) (*model.EventInfo, error)
}

type EventServiceImpl struct {
	catalog   model.EventCatalog
	salesGate cache.SalesGate
}

func NewEventService(catalog model.EventCatalog, salesGate cache.SalesGate) EventService {
	return &EventServiceImpl{catalog: catalog, salesGate: salesGate}
}

func (s *EventServiceImpl) Info(ctx context.Context) (*model.EventInfo, error) {
	open, err := s.salesGate.IsOpen(ctx)
	if err != nil {
		return nil, err
	}
	return &model.EventInfo{EventCatalog: s.catalog, SalesOpen: open}, nil
}

func (s *EventServiceImpl) SetSalesOpen(ctx context.Context, open bool) (*model.EventInfo, error) {
	if err := s.salesGate.SetOpen(ctx, open); err != nil {
		return nil, err
	}
	logger.WithComponent("service").Info("Sales gate updated", zap.Bool("open", open))
	return &model.EventInfo{EventCatalog: s.catalog, SalesOpen: open}, nil
}
