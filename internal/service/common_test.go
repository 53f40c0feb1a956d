package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-gin-reservation-ledger/internal/cache"
	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/internal/queue"
	"go-gin-reservation-ledger/internal/repository"
	"go-gin-reservation-ledger/internal/service"

	"github.com/stretchr/testify/require"
)

// recordingPublisher 記錄送出的付款結果事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.DecisionEvent
	err    error
}

func (p *recordingPublisher) PublishDecision(ctx context.Context, event *model.DecisionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []*model.DecisionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.DecisionEvent(nil), p.events...)
}

type testEnv struct {
	repo        repository.ReservationRepository
	changes     queue.ChangeQueue
	decisions   *recordingPublisher
	gate        cache.SalesGate
	board       cache.BalanceBoard
	reservation service.ReservationService
	redemption  service.RedemptionService
	event       service.EventService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, repository.NewMemoryReservationRepository(), service.RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond})
}

func newTestEnvWithRepo(t *testing.T, repo repository.ReservationRepository, retry service.RetryPolicy) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:      repo,
		changes:   queue.NewChangeQueue(1000),
		decisions: &recordingPublisher{},
		gate:      cache.NewMemorySalesGate(),
		board:     cache.NewMemoryBalanceBoard(),
	}
	notifier := service.NewChangeNotifier(env.changes, env.decisions, env.board)
	catalog := model.DefaultEventCatalog()

	env.reservation = service.NewReservationService(repo, catalog, env.gate, notifier, retry)
	env.redemption = service.NewRedemptionService(repo, env.board, notifier, retry)
	env.event = service.NewEventService(catalog, env.gate)
	return env
}

func submitParams(owner, class string, units int) model.SubmitReservationParams {
	return model.SubmitReservationParams{
		OwnerIdentity:  owner,
		DisplayName:    "Ana",
		Phone:          "4520000000",
		Program:        "ISC",
		Semester:       "1",
		Class:          class,
		RequestedUnits: units,
		ProofReference: "proofs/ana.png",
	}
}

// createPaid 建立並確認一筆預約
func (env *testEnv) createPaid(t *testing.T, class string, units int) *model.Reservation {
	t.Helper()
	ctx := context.Background()
	created, err := env.reservation.Submit(ctx, submitParams("ana@test.com", class, units))
	require.NoError(t, err)
	paid, err := env.reservation.Confirm(ctx, created.ID)
	require.NoError(t, err)
	return paid
}

// drainChanges 取出目前佇列中的變更事件
func (env *testEnv) drainChanges(t *testing.T) []*model.ChangeEvent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deliveries, err := env.changes.SubscribeChanges(ctx)
	require.NoError(t, err)

	var events []*model.ChangeEvent
	for {
		select {
		case d := <-deliveries:
			events = append(events, d.Data)
			d.Ack()
		case <-time.After(50 * time.Millisecond):
			return events
		}
	}
}

// conflictingRepository 每次條件更新都回傳版本衝突
type conflictingRepository struct {
	repository.ReservationRepository
	mu      sync.Mutex
	updates int
}

func (r *conflictingRepository) Update(ctx context.Context, id string, params model.UpdateReservationParams) (*model.Reservation, error) {
	r.mu.Lock()
	r.updates++
	r.mu.Unlock()
	return r.ReservationRepository.Update(ctx, id, model.UpdateReservationParams{
		Status:            params.Status,
		RemainingUnits:    params.RemainingUnits,
		CredentialPayload: params.CredentialPayload,
		ExpectedVersion:   ptrInt64(-1),
	})
}

func (r *conflictingRepository) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

func ptrInt64(v int64) *int64 {
	return &v
}
