package cache

import (
	"context"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

const salesOpenKey = "event:sales_open"

// SalesGate 活動是否開放預約，未設定時視為開放
type SalesGate interface {
	IsOpen(ctx context.Context) (bool, error)
	SetOpen(ctx context.Context, open bool) error
}

type RedisSalesGate struct {
	client *redis.Client
}

func NewRedisSalesGate(client *redis.Client) SalesGate {
	return &RedisSalesGate{
		client: client,
	}
}

func (g *RedisSalesGate) IsOpen(ctx context.Context) (bool, error) {
	val, err := g.client.Get(ctx, salesOpenKey).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return val != "0", nil
}

func (g *RedisSalesGate) SetOpen(ctx context.Context, open bool) error {
	val := "0"
	if open {
		val = "1"
	}
	return g.client.Set(ctx, salesOpenKey, val, 0).Err()
}

type MemorySalesGate struct {
	closed atomic.Bool
}

func NewMemorySalesGate() SalesGate {
	return &MemorySalesGate{}
}

func (g *MemorySalesGate) IsOpen(ctx context.Context) (bool, error) {
	return !g.closed.Load(), nil
}

func (g *MemorySalesGate) SetOpen(ctx context.Context, open bool) error {
	g.closed.Store(!open)
	return nil
}
