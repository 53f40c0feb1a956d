package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-gin-reservation-ledger/internal/model"
	apperrors "go-gin-reservation-ledger/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationRepository 預約資料的唯一來源
// Update 帶 ExpectedVersion 時為 compare-and-set，版本不符回傳 ErrVersionConflict
type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error)
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	ListByOwner(ctx context.Context, ownerIdentity string) ([]*model.Reservation, error)
	List(ctx context.Context) ([]*model.Reservation, error)
	Update(ctx context.Context, id string, params model.UpdateReservationParams) (*model.Reservation, error)
	Delete(ctx context.Context, id string) (*model.Reservation, error)
}

const (
	pgCheckViolation  = "23514"
	pgUniqueViolation = "23505"
)

const reservationColumns = `
	id, owner_identity, display_name, phone, program, semester, event_title,
	class, requested_units, unit_price, total_amount, status, remaining_units,
	proof_reference, credential_payload, version, created_at, updated_at`

type ReservationRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) ReservationRepository {
	return &ReservationRepositoryImpl{
		pool: pool,
	}
}

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(
		&r.ID,
		&r.OwnerIdentity,
		&r.DisplayName,
		&r.Phone,
		&r.Program,
		&r.Semester,
		&r.EventTitle,
		&r.Class,
		&r.RequestedUnits,
		&r.UnitPrice,
		&r.TotalAmount,
		&r.Status,
		&r.RemainingUnits,
		&r.ProofReference,
		&r.CredentialPayload,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectReservations(rows pgx.Rows) ([]*model.Reservation, error) {
	defer rows.Close()

	reservations := make([]*model.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reservations, nil
}

// prepareForCreate 補上 id、版本與時間戳記
func prepareForCreate(reservation *model.Reservation) (*model.Reservation, error) {
	if reservation.RemainingUnits < 0 || reservation.RemainingUnits > reservation.RequestedUnits {
		return nil, apperrors.ErrInvalidInput
	}
	if !reservation.Status.IsValid() || !credentialMatchesStatus(reservation.Status, reservation.CredentialPayload) {
		return nil, apperrors.ErrInvalidInput
	}

	r := reservation.Clone()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.Version = 1
	r.CreatedAt = now
	r.UpdatedAt = now
	return r, nil
}

// credentialMatchesStatus 只有 paid 的預約有憑證
func credentialMatchesStatus(status model.ReservationStatus, payload *string) bool {
	return (status == model.ReservationStatusPaid) == (payload != nil)
}

// validateUpdate 檢查不需要讀取資料就能判斷的錯誤
func validateUpdate(params model.UpdateReservationParams) error {
	if params.IsEmpty() {
		return apperrors.ErrInvalidInput
	}
	if params.Status != nil && !params.Status.IsValid() {
		return apperrors.ErrInvalidInput
	}
	if params.RemainingUnits != nil && *params.RemainingUnits < 0 {
		return apperrors.ErrInvalidInput
	}
	return nil
}

func (r *ReservationRepositoryImpl) Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error) {
	res, err := prepareForCreate(reservation)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO reservations (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING %s
	`, reservationColumns, reservationColumns)

	created, err := scanReservation(r.pool.QueryRow(ctx, query,
		res.ID, res.OwnerIdentity, res.DisplayName, res.Phone, res.Program, res.Semester, res.EventTitle,
		res.Class, res.RequestedUnits, res.UnitPrice, res.TotalAmount, res.Status, res.RemainingUnits,
		res.ProofReference, res.CredentialPayload, res.Version, res.CreatedAt, res.UpdatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == pgCheckViolation || pgErr.Code == pgUniqueViolation) {
			return nil, apperrors.ErrInvalidInput
		}
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	return created, nil
}

func (r *ReservationRepositoryImpl) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM reservations
		WHERE id = $1
	`, reservationColumns)

	reservation, err := scanReservation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrReservationNotFound
		}
		return nil, err
	}

	return reservation, nil
}

func (r *ReservationRepositoryImpl) ListByOwner(ctx context.Context, ownerIdentity string) ([]*model.Reservation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM reservations
		WHERE owner_identity = $1
		ORDER BY created_at DESC, id
	`, reservationColumns)

	rows, err := r.pool.Query(ctx, query, ownerIdentity)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *ReservationRepositoryImpl) List(ctx context.Context) ([]*model.Reservation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM reservations
		ORDER BY created_at DESC, id
	`, reservationColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *ReservationRepositoryImpl) Update(ctx context.Context, id string, params model.UpdateReservationParams) (*model.Reservation, error) {
	if err := validateUpdate(params); err != nil {
		return nil, err
	}

	sets := []string{}
	args := []interface{}{}
	argPos := 1

	if params.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.RemainingUnits != nil {
		sets = append(sets, fmt.Sprintf("remaining_units = $%d", argPos))
		args = append(args, *params.RemainingUnits)
		argPos++
	}
	if params.CredentialPayload != nil {
		sets = append(sets, fmt.Sprintf("credential_payload = $%d", argPos))
		args = append(args, *params.CredentialPayload)
		argPos++
	}

	// add version and updated_at
	sets = append(sets, "version = version + 1", fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	// add id
	where := fmt.Sprintf("id = $%d", argPos)
	args = append(args, id)
	argPos++

	if params.ExpectedVersion != nil {
		where += fmt.Sprintf(" AND version = $%d", argPos)
		args = append(args, *params.ExpectedVersion)
	}

	query := fmt.Sprintf(`
		UPDATE reservations
		SET %s
		WHERE %s
		RETURNING %s
	`, strings.Join(sets, ", "), where, reservationColumns)

	reservation, err := scanReservation(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missedUpdateError(ctx, id)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return nil, apperrors.ErrInvalidInput
		}
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}

	return reservation, nil
}

// missedUpdateError 條件更新沒有命中時，區分資料不存在與版本衝突
func (r *ReservationRepositoryImpl) missedUpdateError(ctx context.Context, id string) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrReservationNotFound
	}
	return apperrors.ErrVersionConflict
}

func (r *ReservationRepositoryImpl) Delete(ctx context.Context, id string) (*model.Reservation, error) {
	query := fmt.Sprintf(`
		DELETE FROM reservations
		WHERE id = $1
		RETURNING %s
	`, reservationColumns)

	reservation, err := scanReservation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrReservationNotFound
		}
		return nil, err
	}

	return reservation, nil
}
