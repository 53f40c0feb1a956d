package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-gin-reservation-ledger/internal/model"
	apperrors "go-gin-reservation-ledger/pkg/app_errors"
)

// memoryRecord 每筆預約各自一把鎖，同一筆的寫入會被序列化
type memoryRecord struct {
	mu          sync.Mutex
	reservation *model.Reservation
	deleted     bool
}

// MemoryReservationRepository 單機用的記憶體實作，語意與 Postgres 版相同
type MemoryReservationRepository struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
}

func NewMemoryReservationRepository() ReservationRepository {
	return &MemoryReservationRepository{
		records: make(map[string]*memoryRecord),
	}
}

func (r *MemoryReservationRepository) Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := prepareForCreate(reservation)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[res.ID]; exists {
		return nil, apperrors.ErrInvalidInput
	}
	r.records[res.ID] = &memoryRecord{reservation: res}

	return res.Clone(), nil
}

func (r *MemoryReservationRepository) lookup(id string) (*memoryRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

func (r *MemoryReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := r.lookup(id)
	if !ok {
		return nil, apperrors.ErrReservationNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return nil, apperrors.ErrReservationNotFound
	}
	return rec.reservation.Clone(), nil
}

func (r *MemoryReservationRepository) ListByOwner(ctx context.Context, ownerIdentity string) ([]*model.Reservation, error) {
	return r.list(ctx, func(res *model.Reservation) bool {
		return res.OwnerIdentity == ownerIdentity
	})
}

func (r *MemoryReservationRepository) List(ctx context.Context) ([]*model.Reservation, error) {
	return r.list(ctx, func(*model.Reservation) bool { return true })
}

func (r *MemoryReservationRepository) list(ctx context.Context, keep func(*model.Reservation) bool) ([]*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	records := make([]*memoryRecord, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}
	r.mu.RUnlock()

	reservations := make([]*model.Reservation, 0, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		if !rec.deleted && keep(rec.reservation) {
			reservations = append(reservations, rec.reservation.Clone())
		}
		rec.mu.Unlock()
	}

	// 新的在前
	sort.Slice(reservations, func(i, j int) bool {
		if reservations[i].CreatedAt.Equal(reservations[j].CreatedAt) {
			return reservations[i].ID < reservations[j].ID
		}
		return reservations[i].CreatedAt.After(reservations[j].CreatedAt)
	})

	return reservations, nil
}

func (r *MemoryReservationRepository) Update(ctx context.Context, id string, params model.UpdateReservationParams) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateUpdate(params); err != nil {
		return nil, err
	}

	rec, ok := r.lookup(id)
	if !ok {
		return nil, apperrors.ErrReservationNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.deleted {
		return nil, apperrors.ErrReservationNotFound
	}
	current := rec.reservation
	if params.ExpectedVersion != nil && *params.ExpectedVersion != current.Version {
		return nil, apperrors.ErrVersionConflict
	}

	next := current.Clone()
	if params.Status != nil {
		next.Status = *params.Status
	}
	if params.RemainingUnits != nil {
		next.RemainingUnits = *params.RemainingUnits
	}
	if params.CredentialPayload != nil {
		payload := *params.CredentialPayload
		next.CredentialPayload = &payload
	}
	if next.RemainingUnits > next.RequestedUnits || !credentialMatchesStatus(next.Status, next.CredentialPayload) {
		return nil, apperrors.ErrInvalidInput
	}

	next.Version++
	next.UpdatedAt = time.Now().UTC()
	rec.reservation = next

	return next.Clone(), nil
}

func (r *MemoryReservationRepository) Delete(ctx context.Context, id string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	if ok {
		delete(r.records, id)
	}
	r.mu.Unlock()

	if !ok {
		return nil, apperrors.ErrReservationNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.deleted = true
	return rec.reservation.Clone(), nil
}
