package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go-gin-reservation-ledger/internal/model"
	apperrors "go-gin-reservation-ledger/pkg/app_errors"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	redisAllReservationsKey = "reservations:all"
	redisOwnerIndexPrefix   = "reservations:owner:"
)

// 建立：key 不存在才寫入，並加入索引
var createReservationScript = redis.NewScript(`
	local record_key = KEYS[1]
	local all_key = KEYS[2]
	local owner_key = KEYS[3]

	local score = ARGV[1]
	local id = ARGV[2]

	if redis.call('EXISTS', record_key) == 1 then
		return 0
	end

	for i = 3, #ARGV, 2 do
		redis.call('HSET', record_key, ARGV[i], ARGV[i + 1])
	end
	redis.call('ZADD', all_key, score, id)
	redis.call('ZADD', owner_key, score, id)

	return 1
`)

// 更新：ARGV[1] 為預期版本 (空字串表示不檢查)，ARGV[2] 為 updated_at，之後為欄位/值
// 回傳第一個元素為狀態，ok 時後面接 HGETALL 結果
var updateReservationScript = redis.NewScript(`
	local record_key = KEYS[1]
	local expected = ARGV[1]
	local updated_at = ARGV[2]

	if redis.call('EXISTS', record_key) == 0 then
		return {'not_found'}
	end

	local version = tonumber(redis.call('HGET', record_key, 'version'))
	if expected ~= '' and tonumber(expected) ~= version then
		return {'conflict'}
	end

	local requested = tonumber(redis.call('HGET', record_key, 'requested_units'))
	local remaining = tonumber(redis.call('HGET', record_key, 'remaining_units'))
	local status = redis.call('HGET', record_key, 'status')
	local has_credential = redis.call('HEXISTS', record_key, 'credential_payload') == 1

	for i = 3, #ARGV, 2 do
		local field = ARGV[i]
		if field == 'remaining_units' then
			remaining = tonumber(ARGV[i + 1])
		elseif field == 'status' then
			status = ARGV[i + 1]
		elseif field == 'credential_payload' then
			has_credential = true
		end
	end

	if remaining < 0 or remaining > requested then
		return {'invalid'}
	end
	if (status == 'paid') ~= has_credential then
		return {'invalid'}
	end

	for i = 3, #ARGV, 2 do
		redis.call('HSET', record_key, ARGV[i], ARGV[i + 1])
	end
	redis.call('HSET', record_key, 'version', version + 1)
	redis.call('HSET', record_key, 'updated_at', updated_at)

	local result = redis.call('HGETALL', record_key)
	table.insert(result, 1, 'ok')
	return result
`)

// 刪除：回傳刪除前的 HGETALL，不存在時回傳空陣列
var deleteReservationScript = redis.NewScript(`
	local record_key = KEYS[1]
	local all_key = KEYS[2]
	local owner_key = KEYS[3]
	local id = ARGV[1]

	local fields = redis.call('HGETALL', record_key)
	if #fields == 0 then
		return {}
	end

	redis.call('DEL', record_key)
	redis.call('ZREM', all_key, id)
	redis.call('ZREM', owner_key, id)

	return fields
`)

// RedisReservationRepository 每筆預約一個 hash，另以 sorted set 依建立時間建立索引
type RedisReservationRepository struct {
	client *redis.Client
}

func NewRedisReservationRepository(client *redis.Client) ReservationRepository {
	return &RedisReservationRepository{
		client: client,
	}
}

// 預約資料 key
func (r *RedisReservationRepository) getRecordKey(id string) string {
	return fmt.Sprintf("reservation:%s", id)
}

// 擁有者索引 key
func (r *RedisReservationRepository) getOwnerKey(ownerIdentity string) string {
	return redisOwnerIndexPrefix + ownerIdentity
}

func (r *RedisReservationRepository) Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error) {
	res, err := prepareForCreate(reservation)
	if err != nil {
		return nil, err
	}

	args := []interface{}{res.CreatedAt.UnixMicro(), res.ID}
	args = append(args, encodeReservationFields(res)...)

	created, err := createReservationScript.Run(ctx, r.client,
		[]string{r.getRecordKey(res.ID), redisAllReservationsKey, r.getOwnerKey(res.OwnerIdentity)},
		args...,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	if created == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	return res, nil
}

func (r *RedisReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	fields, err := r.client.HGetAll(ctx, r.getRecordKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, apperrors.ErrReservationNotFound
	}
	return decodeReservationFields(fields)
}

func (r *RedisReservationRepository) ListByOwner(ctx context.Context, ownerIdentity string) ([]*model.Reservation, error) {
	return r.listIndex(ctx, r.getOwnerKey(ownerIdentity))
}

func (r *RedisReservationRepository) List(ctx context.Context) ([]*model.Reservation, error) {
	return r.listIndex(ctx, redisAllReservationsKey)
}

func (r *RedisReservationRepository) listIndex(ctx context.Context, indexKey string) ([]*model.Reservation, error) {
	ids, err := r.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, r.getRecordKey(id)))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	reservations := make([]*model.Reservation, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		// 讀取途中被刪除
		if len(fields) == 0 {
			continue
		}
		res, err := decodeReservationFields(fields)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}

	return reservations, nil
}

func (r *RedisReservationRepository) Update(ctx context.Context, id string, params model.UpdateReservationParams) (*model.Reservation, error) {
	if err := validateUpdate(params); err != nil {
		return nil, err
	}

	expected := ""
	if params.ExpectedVersion != nil {
		expected = strconv.FormatInt(*params.ExpectedVersion, 10)
	}

	args := []interface{}{expected, formatRedisTime(time.Now().UTC())}
	if params.Status != nil {
		args = append(args, "status", string(*params.Status))
	}
	if params.RemainingUnits != nil {
		args = append(args, "remaining_units", *params.RemainingUnits)
	}
	if params.CredentialPayload != nil {
		args = append(args, "credential_payload", *params.CredentialPayload)
	}

	result, err := updateReservationScript.Run(ctx, r.client, []string{r.getRecordKey(id)}, args...).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	if len(result) == 0 {
		return nil, errors.New("unexpected result")
	}

	switch result[0] {
	case "ok":
		return decodeReservationFields(pairsToMap(result[1:]))
	case "not_found":
		return nil, apperrors.ErrReservationNotFound
	case "conflict":
		return nil, apperrors.ErrVersionConflict
	case "invalid":
		return nil, apperrors.ErrInvalidInput
	default:
		return nil, fmt.Errorf("unexpected result: %s", result[0])
	}
}

func (r *RedisReservationRepository) Delete(ctx context.Context, id string) (*model.Reservation, error) {
	// 擁有者建立後不會改變，先讀出來組索引 key
	owner, err := r.client.HGet(ctx, r.getRecordKey(id), "owner_identity").Result()
	if err == redis.Nil {
		return nil, apperrors.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}

	fields, err := deleteReservationScript.Run(ctx, r.client,
		[]string{r.getRecordKey(id), redisAllReservationsKey, r.getOwnerKey(owner)},
		id,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to delete reservation: %w", err)
	}
	if len(fields) == 0 {
		return nil, apperrors.ErrReservationNotFound
	}

	return decodeReservationFields(pairsToMap(fields))
}

func formatRedisTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeReservationFields(r *model.Reservation) []interface{} {
	fields := []interface{}{
		"id", r.ID,
		"owner_identity", r.OwnerIdentity,
		"display_name", r.DisplayName,
		"phone", r.Phone,
		"program", r.Program,
		"semester", r.Semester,
		"event_title", r.EventTitle,
		"class", r.Class,
		"requested_units", r.RequestedUnits,
		"unit_price", r.UnitPrice.String(),
		"total_amount", r.TotalAmount.String(),
		"status", string(r.Status),
		"remaining_units", r.RemainingUnits,
		"proof_reference", r.ProofReference,
		"version", r.Version,
		"created_at", formatRedisTime(r.CreatedAt),
		"updated_at", formatRedisTime(r.UpdatedAt),
	}
	if r.CredentialPayload != nil {
		fields = append(fields, "credential_payload", *r.CredentialPayload)
	}
	return fields
}

func pairsToMap(pairs []string) map[string]string {
	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields[pairs[i]] = pairs[i+1]
	}
	return fields
}

func decodeReservationFields(fields map[string]string) (*model.Reservation, error) {
	r := &model.Reservation{
		ID:             fields["id"],
		OwnerIdentity:  fields["owner_identity"],
		DisplayName:    fields["display_name"],
		Phone:          fields["phone"],
		Program:        fields["program"],
		Semester:       fields["semester"],
		EventTitle:     fields["event_title"],
		Class:          fields["class"],
		Status:         model.ReservationStatus(fields["status"]),
		ProofReference: fields["proof_reference"],
	}

	var err error
	if r.RequestedUnits, err = strconv.Atoi(fields["requested_units"]); err != nil {
		return nil, fmt.Errorf("invalid requested_units: %v", err)
	}
	if r.RemainingUnits, err = strconv.Atoi(fields["remaining_units"]); err != nil {
		return nil, fmt.Errorf("invalid remaining_units: %v", err)
	}
	if r.Version, err = strconv.ParseInt(fields["version"], 10, 64); err != nil {
		return nil, fmt.Errorf("invalid version: %v", err)
	}
	if r.UnitPrice, err = decimal.NewFromString(fields["unit_price"]); err != nil {
		return nil, fmt.Errorf("invalid unit_price: %v", err)
	}
	if r.TotalAmount, err = decimal.NewFromString(fields["total_amount"]); err != nil {
		return nil, fmt.Errorf("invalid total_amount: %v", err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("invalid created_at: %v", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %v", err)
	}
	if payload, ok := fields["credential_payload"]; ok {
		r.CredentialPayload = &payload
	}

	return r, nil
}
