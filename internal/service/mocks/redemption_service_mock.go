package mocks

import (
	"context"

	"go-gin-reservation-ledger/internal/model"

	"github.com/stretchr/testify/mock"
)

type RedemptionServiceMock struct {
	mock.Mock
}

func NewRedemptionServiceMock() *RedemptionServiceMock {
	return &RedemptionServiceMock{}
}

func (m *RedemptionServiceMock) Redeem(ctx context.Context, id string, units int) (*model.RedemptionResult, error) {
	args := m.Called(ctx, id, units)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RedemptionResult), args.Error(1)
}

func (m *RedemptionServiceMock) RedeemCredential(ctx context.Context, payload string, units int) (*model.RedemptionResult, error) {
	args := m.Called(ctx, payload, units)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RedemptionResult), args.Error(1)
}

func (m *RedemptionServiceMock) Resolve(ctx context.Context, payload string) (*model.ResolvedCredential, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResolvedCredential), args.Error(1)
}

func (m *RedemptionServiceMock) Balance(ctx context.Context, id string) (*model.BalanceView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BalanceView), args.Error(1)
}
