package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "go-gin-reservation-ledger/pkg/app_errors"
)

// RetryPolicy 樂觀鎖衝突時的重試設定
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Backoff: 5 * time.Millisecond}
}

// run 只在 ErrVersionConflict 時重試，每次重新讀取由 op 自行負責
// 次數用完回傳 ErrContention，第 n 次失敗後等待 n * Backoff
func (p RetryPolicy) run(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("%w: gave up after %d attempts", apperrors.ErrContention, attempts)
		}

		if err := sleepCtx(ctx, p.Backoff*time.Duration(attempt)); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
