// Package testutil 測試用的 Redis 與 Postgres 連線
package testutil

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"go-gin-reservation-ledger/config"
	"go-gin-reservation-ledger/internal/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// SetupRedis 啟動 miniredis，測試結束時關閉
func SetupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return rdb, mr
}

// SetupPostgres 連到測試資料庫 (port 5433) 並套用 migrations，連不上時略過測試
func SetupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}

	cfg := config.LoadTestConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pool, err := database.InitDatabase(ctx, &cfg.Database)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.ApplyMigrations(ctx, pool, MigrationsDir()); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	// 清空資料，保留 schema
	if _, err := pool.Exec(ctx, "TRUNCATE reservations, admins"); err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}

	return pool
}

// MigrationsDir 回傳 repo 根目錄下的 migrations
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
