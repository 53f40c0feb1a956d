package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-gin-reservation-ledger/internal/cache"
	"go-gin-reservation-ledger/internal/credential"
	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/internal/repository"
	apperrors "go-gin-reservation-ledger/pkg/app_errors"
	"go-gin-reservation-ledger/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReservationService 預約的建立、付款確認與拒絕
// 權限檢查在 handler 層完成，這裡信任呼叫端
type ReservationService interface {
	// 建立：狀態為 pending，人數依類別上下限調整
	Submit(ctx context.Context, params model.SubmitReservationParams) (*model.Reservation, error)
	// 確認付款：pending -> paid，同一次寫入產生憑證
	Confirm(ctx context.Context, id string) (*model.Reservation, error)
	// 拒絕：pending -> rejected
	Reject(ctx context.Context, id string) (*model.Reservation, error)
	// 刪除：不論狀態
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Reservation, error)
	ListByOwner(ctx context.Context, ownerIdentity string) ([]*model.Reservation, error)
	ListAll(ctx context.Context) ([]*model.Reservation, error)
}

type ReservationServiceImpl struct {
	repository repository.ReservationRepository
	catalog    model.EventCatalog
	salesGate  cache.SalesGate
	notifier   *ChangeNotifier
	retry      RetryPolicy
	now        func() time.Time
	log        *zap.Logger
}

func NewReservationService(
	reservationRepository repository.ReservationRepository,
	catalog model.EventCatalog,
	salesGate cache.SalesGate,
	notifier *ChangeNotifier,
	retry RetryPolicy,
) ReservationService {
	return &ReservationServiceImpl{
		repository: reservationRepository,
		catalog:    catalog,
		salesGate:  salesGate,
		notifier:   notifier,
		retry:      retry,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logger.WithComponent("service"),
	}
}

func (s *ReservationServiceImpl) Submit(ctx context.Context, params model.SubmitReservationParams) (*model.Reservation, error) {
	owner := strings.TrimSpace(params.OwnerIdentity)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner identity is required", apperrors.ErrValidation)
	}
	proof := strings.TrimSpace(params.ProofReference)
	if proof == "" {
		return nil, fmt.Errorf("%w: proof of payment is required", apperrors.ErrValidation)
	}
	class, ok := s.catalog.Class(params.Class)
	if !ok {
		return nil, fmt.Errorf("%w: unknown class %q", apperrors.ErrValidation, params.Class)
	}

	if s.salesGate != nil {
		open, err := s.salesGate.IsOpen(ctx)
		if err != nil {
			return nil, fmt.Errorf("check sales gate: %w", err)
		}
		if !open {
			return nil, apperrors.ErrSalesClosed
		}
	}

	units := class.Clamp(params.RequestedUnits)
	reservation := &model.Reservation{
		OwnerIdentity:  owner,
		DisplayName:    strings.TrimSpace(params.DisplayName),
		Phone:          strings.TrimSpace(params.Phone),
		Program:        strings.TrimSpace(params.Program),
		Semester:       strings.TrimSpace(params.Semester),
		EventTitle:     s.catalog.Title,
		Class:          class.Name,
		RequestedUnits: units,
		UnitPrice:      s.catalog.UnitPrice,
		TotalAmount:    s.catalog.UnitPrice.Mul(decimal.NewFromInt(int64(units))),
		Status:         model.ReservationStatusPending,
		RemainingUnits: units,
		ProofReference: proof,
	}

	created, err := s.repository.Create(ctx, reservation)
	if err != nil {
		return nil, err
	}

	if units != params.RequestedUnits {
		s.log.Info("Requested units clamped",
			zap.String("reservation_id", created.ID),
			zap.String("class", class.Name),
			zap.Int("requested", params.RequestedUnits),
			zap.Int("units", units))
	}

	s.notifier.committed(ctx, created, model.ChangeKindCreated)
	return created, nil
}

func (s *ReservationServiceImpl) Confirm(ctx context.Context, id string) (*model.Reservation, error) {
	updated, err := s.decide(ctx, id, model.ReservationStatusPaid)
	if err != nil {
		return nil, err
	}
	s.notifier.committed(ctx, updated, model.ChangeKindConfirmed)
	return updated, nil
}

func (s *ReservationServiceImpl) Reject(ctx context.Context, id string) (*model.Reservation, error) {
	updated, err := s.decide(ctx, id, model.ReservationStatusRejected)
	if err != nil {
		return nil, err
	}
	s.notifier.committed(ctx, updated, model.ChangeKindRejected)
	return updated, nil
}

// decide 讀取後以版本條件寫入；衝突時重新讀取，已不是 pending 就回傳 ErrInvalidTransition
func (s *ReservationServiceImpl) decide(ctx context.Context, id string, target model.ReservationStatus) (*model.Reservation, error) {
	var updated *model.Reservation

	err := s.retry.run(ctx, func() error {
		current, err := s.repository.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: reservation is %s", apperrors.ErrInvalidTransition, current.Status)
		}

		params := model.UpdateReservationParams{
			Status:          &target,
			ExpectedVersion: &current.Version,
		}
		if target == model.ReservationStatusPaid {
			payload, err := credential.Encode(credential.Snapshot{
				ID:            current.ID,
				OwnerIdentity: current.OwnerIdentity,
				DisplayName:   current.DisplayName,
				Class:         current.Class,
				UnitsAtIssue:  current.RemainingUnits,
				IssuedAt:      s.now(),
			})
			if err != nil {
				return err
			}
			params.CredentialPayload = &payload
		}

		updated, err = s.repository.Update(ctx, id, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *ReservationServiceImpl) Remove(ctx context.Context, id string) error {
	removed, err := s.repository.Delete(ctx, id)
	if err != nil {
		return err
	}

	// 刪除也算一次變更
	removed.Version++
	s.notifier.committed(ctx, removed, model.ChangeKindRemoved)
	return nil
}

func (s *ReservationServiceImpl) Get(ctx context.Context, id string) (*model.Reservation, error) {
	return s.repository.FindByID(ctx, id)
}

func (s *ReservationServiceImpl) ListByOwner(ctx context.Context, ownerIdentity string) ([]*model.Reservation, error) {
	return s.repository.ListByOwner(ctx, ownerIdentity)
}

func (s *ReservationServiceImpl) ListAll(ctx context.Context) ([]*model.Reservation, error) {
	return s.repository.List(ctx)
}
