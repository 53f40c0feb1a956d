package service

import (
	"context"
	"errors"
	"fmt"

	"go-gin-reservation-ledger/internal/cache"
	"go-gin-reservation-ledger/internal/credential"
	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/internal/repository"
	apperrors "go-gin-reservation-ledger/pkg/app_errors"
	"go-gin-reservation-ledger/pkg/logger"

	"go.uber.org/zap"
)

// RedemptionService 入場扣減
// 剩餘人數只以儲存層為準，憑證上的數字只用於顯示
type RedemptionService interface {
	// 扣減：實際扣減 min(units, remaining)，不會部分寫入
	Redeem(ctx context.Context, id string, units int) (*model.RedemptionResult, error)
	// 以掃描到的憑證扣減
	RedeemCredential(ctx context.Context, payload string, units int) (*model.RedemptionResult, error)
	// 掃描預覽：解析憑證並查詢目前狀態
	Resolve(ctx context.Context, payload string) (*model.ResolvedCredential, error)
	// 顯示用餘額，快取沒有時讀儲存層
	Balance(ctx context.Context, id string) (*model.BalanceView, error)
}

type RedemptionServiceImpl struct {
	repository repository.ReservationRepository
	board      cache.BalanceBoard
	notifier   *ChangeNotifier
	retry      RetryPolicy
	log        *zap.Logger
}

func NewRedemptionService(
	reservationRepository repository.ReservationRepository,
	board cache.BalanceBoard,
	notifier *ChangeNotifier,
	retry RetryPolicy,
) RedemptionService {
	return &RedemptionServiceImpl{
		repository: reservationRepository,
		board:      board,
		notifier:   notifier,
		retry:      retry,
		log:        logger.WithComponent("service"),
	}
}

func (s *RedemptionServiceImpl) Redeem(ctx context.Context, id string, units int) (*model.RedemptionResult, error) {
	if units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", apperrors.ErrValidation)
	}

	var (
		updated  *model.Reservation
		redeemed int
	)
	err := s.retry.run(ctx, func() error {
		current, err := s.repository.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != model.ReservationStatusPaid {
			return fmt.Errorf("%w: reservation is %s", apperrors.ErrInvalidTransition, current.Status)
		}

		redeemed = min(units, current.RemainingUnits)
		if redeemed < 1 {
			return apperrors.ErrExhausted
		}

		remaining := current.RemainingUnits - redeemed
		updated, err = s.repository.Update(ctx, id, model.UpdateReservationParams{
			RemainingUnits:  &remaining,
			ExpectedVersion: &current.Version,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.committed(ctx, updated, model.ChangeKindRedeemed)

	return &model.RedemptionResult{
		ReservationID:  updated.ID,
		Redeemed:       redeemed,
		RemainingAfter: updated.RemainingUnits,
		Version:        updated.Version,
	}, nil
}

func (s *RedemptionServiceImpl) RedeemCredential(ctx context.Context, payload string, units int) (*model.RedemptionResult, error) {
	snapshot, err := credential.Decode(payload)
	if err != nil {
		return nil, err
	}
	return s.Redeem(ctx, snapshot.ID, units)
}

func (s *RedemptionServiceImpl) Resolve(ctx context.Context, payload string) (*model.ResolvedCredential, error) {
	snapshot, err := credential.Decode(payload)
	if err != nil {
		return nil, err
	}

	current, err := s.repository.FindByID(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}

	return &model.ResolvedCredential{
		ReservationID:     current.ID,
		CredentialVersion: snapshot.Version,
		OwnerIdentity:     snapshot.OwnerIdentity,
		DisplayName:       snapshot.DisplayName,
		Class:             snapshot.Class,
		UnitsAtIssue:      snapshot.UnitsAtIssue,
		IssuedAt:          snapshot.IssuedAt,
		Status:            current.Status,
		RequestedUnits:    current.RequestedUnits,
		RemainingUnits:    current.RemainingUnits,
		Version:           current.Version,
	}, nil
}

func (s *RedemptionServiceImpl) Balance(ctx context.Context, id string) (*model.BalanceView, error) {
	if s.board != nil {
		view, err := s.board.Get(ctx, id)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, apperrors.ErrCacheMiss) {
			s.log.Warn("Balance board read failed, falling back to store",
				zap.String("reservation_id", id),
				zap.Error(err))
		}
	}

	current, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := model.NewBalanceView(current)

	if s.board != nil {
		if _, err := s.board.Apply(ctx, view); err != nil {
			s.log.Warn("Balance board write failed",
				zap.String("reservation_id", id),
				zap.Error(err))
		}
	}

	return view, nil
}
