package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go-gin-reservation-ledger/internal/model"
	apperrors "go-gin-reservation-ledger/pkg/app_errors"

	"github.com/redis/go-redis/v9"
)

// BalanceBoard 顯示用的剩餘入場數快取，只接受比目前更新的版本
// 扣減一律以儲存層為準，這裡的資料只給掃描畫面與看板讀取
type BalanceBoard interface {
	// 寫入：版本不比目前新時忽略，回傳是否有寫入
	Apply(ctx context.Context, view *model.BalanceView) (bool, error)
	// 讀取：不存在時回傳 ErrCacheMiss
	Get(ctx context.Context, reservationID string) (*model.BalanceView, error)
	// 移除：預約被刪除時呼叫
	Evict(ctx context.Context, reservationID string) error
}

// 1. 取得目前版本
// 2. 新版本才寫入
var applyBalanceScript = redis.NewScript(`
	local balance_key = KEYS[1]
	local version = tonumber(ARGV[1])

	local current = redis.call('HGET', balance_key, 'version')
	if current and tonumber(current) >= version then
		return 0
	end

	redis.call('HSET', balance_key,
		'version', ARGV[1],
		'status', ARGV[2],
		'requested_units', ARGV[3],
		'remaining_units', ARGV[4])

	return 1
`)

type RedisBalanceBoard struct {
	client *redis.Client
}

func NewRedisBalanceBoard(client *redis.Client) BalanceBoard {
	return &RedisBalanceBoard{
		client: client,
	}
}

func (b *RedisBalanceBoard) getBalanceKey(reservationID string) string {
	return fmt.Sprintf("reservation:%s:balance", reservationID)
}

func (b *RedisBalanceBoard) Apply(ctx context.Context, view *model.BalanceView) (bool, error) {
	applied, err := applyBalanceScript.Run(ctx, b.client,
		[]string{b.getBalanceKey(view.ReservationID)},
		view.Version, string(view.Status), view.RequestedUnits, view.RemainingUnits,
	).Int()
	if err != nil {
		return false, err
	}
	return applied == 1, nil
}

func (b *RedisBalanceBoard) Get(ctx context.Context, reservationID string) (*model.BalanceView, error) {
	result, err := b.client.HGetAll(ctx, b.getBalanceKey(reservationID)).Result()
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, apperrors.ErrCacheMiss
	}

	version, err := strconv.ParseInt(result["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version: %v", err)
	}
	requested, err := strconv.Atoi(result["requested_units"])
	if err != nil {
		return nil, fmt.Errorf("invalid requested_units: %v", err)
	}
	remaining, err := strconv.Atoi(result["remaining_units"])
	if err != nil {
		return nil, fmt.Errorf("invalid remaining_units: %v", err)
	}

	return &model.BalanceView{
		ReservationID:  reservationID,
		Status:         model.ReservationStatus(result["status"]),
		RequestedUnits: requested,
		RemainingUnits: remaining,
		Version:        version,
	}, nil
}

func (b *RedisBalanceBoard) Evict(ctx context.Context, reservationID string) error {
	return b.client.Del(ctx, b.getBalanceKey(reservationID)).Err()
}

// MemoryBalanceBoard 沒有 Redis 時使用
type MemoryBalanceBoard struct {
	mu       sync.RWMutex
	balances map[string]model.BalanceView
}

func NewMemoryBalanceBoard() BalanceBoard {
	return &MemoryBalanceBoard{
		balances: make(map[string]model.BalanceView),
	}
}

func (b *MemoryBalanceBoard) Apply(ctx context.Context, view *model.BalanceView) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.balances[view.ReservationID]; ok && current.Version >= view.Version {
		return false, nil
	}
	b.balances[view.ReservationID] = *view
	return true, nil
}

func (b *MemoryBalanceBoard) Get(ctx context.Context, reservationID string) (*model.BalanceView, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	view, ok := b.balances[reservationID]
	if !ok {
		return nil, apperrors.ErrCacheMiss
	}
	return &view, nil
}

func (b *MemoryBalanceBoard) Evict(ctx context.Context, reservationID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.balances, reservationID)
	return nil
}
