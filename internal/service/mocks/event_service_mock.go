package mocks

import (
	"context"

	"go-gin-reservation-ledger/internal/model"

	"github.com/stretchr/testify/mock"
)

type EventServiceMock struct {
	mock.Mock
}

func NewEventServiceMock() *EventServiceMock {
	return &EventServiceMock{}
}

func (m *EventServiceMock) Info(ctx context.Context) (*model.EventInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EventInfo), args.Error(1)
}

func (m *EventServiceMock) SetSalesOpen(ctx context.Context, open bool) (*model.EventInfo, error) {
	args := m.Called(ctx, open)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EventInfo), args.Error(1)
}
