package main

import (
	"context"
	"fmt"
	"net/http"

	"go-gin-reservation-ledger/config"
	"go-gin-reservation-ledger/internal/cache"
	"go-gin-reservation-ledger/internal/database"
	"go-gin-reservation-ledger/internal/handler"
	"go-gin-reservation-ledger/internal/middleware"
	"go-gin-reservation-ledger/internal/notify"
	"go-gin-reservation-ledger/internal/queue"
	"go-gin-reservation-ledger/internal/repository"
	"go-gin-reservation-ledger/internal/service"
	"go-gin-reservation-ledger/internal/worker"
	"go-gin-reservation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App 依設定組出的所有元件
type App struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	admins    repository.AdminRepository
	decisions queue.DecisionPublisher

	reservations service.ReservationService
	redemptions  service.RedemptionService
	events       service.EventService
	hub          *notify.Hub
	worker       worker.ChangeWorker
	authenticate gin.HandlerFunc
}

func newApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log := logger.WithComponent("server")
	app := &App{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if cfg.Store.Driver == config.StoreDriverPostgres {
		if app.pool, err = database.InitDatabase(ctx, &cfg.Database); err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
	}
	if cfg.Store.Driver == config.StoreDriverRedis || cfg.Queue.Driver == config.QueueDriverRedis {
		if app.rdb, err = database.InitRedis(ctx, &cfg.Redis); err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
	}

	var reservationRepository repository.ReservationRepository
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		reservationRepository = repository.NewReservationRepository(app.pool)
	case config.StoreDriverRedis:
		reservationRepository = repository.NewRedisReservationRepository(app.rdb)
	default:
		reservationRepository = repository.NewMemoryReservationRepository()
	}

	// 有 Redis 時看板與開關放在 Redis，多個實例共用
	var (
		board     cache.BalanceBoard
		salesGate cache.SalesGate
	)
	if app.rdb != nil {
		board = cache.NewRedisBalanceBoard(app.rdb)
		salesGate = cache.NewRedisSalesGate(app.rdb)
	} else {
		board = cache.NewMemoryBalanceBoard()
		salesGate = cache.NewMemorySalesGate()
	}

	var changes queue.ChangeQueue
	if cfg.Queue.Driver == config.QueueDriverRedis {
		changes, err = queue.NewRedisStreamChangeQueue(ctx, app.rdb, cfg.Queue.ConsumerID, &queue.RedisStreamChangeQueueConfig{
			ClaimMinIdleTime:   cfg.Queue.ClaimMinIdleTime,
			MaxRetryCount:      cfg.Queue.MaxRetryCount,
			ReadGroupBlockTime: cfg.Queue.ReadBlockTime,
		})
		if err != nil {
			return nil, fmt.Errorf("init change queue: %w", err)
		}
	} else {
		changes = queue.NewChangeQueue(cfg.Queue.BufferSize)
	}

	if cfg.AMQP.URL != "" {
		if app.decisions, err = queue.NewAMQPDecisionPublisher(cfg.AMQP.URL, cfg.AMQP.Queue); err != nil {
			return nil, fmt.Errorf("init decision publisher: %w", err)
		}
	} else {
		log.Info("RABBITMQ_URL not set, decision events disabled")
		app.decisions = queue.NewNopDecisionPublisher()
	}

	var authorizer middleware.Authorizer
	if cfg.Auth.AdminSource == config.AdminSourcePostgres {
		app.admins = repository.NewAdminRepository(app.pool)
		authorizer = middleware.NewAdminAuthorizer(app.admins)
	} else {
		authorizer = middleware.NewStaticAuthorizer(cfg.Auth.AdminIdentities)
	}
	app.authenticate = middleware.Authenticate(cfg.Auth.JWTSecret, authorizer)

	retry := service.RetryPolicy{
		MaxAttempts: cfg.Ledger.MaxAttempts,
		Backoff:     cfg.Ledger.RetryBackoff,
	}
	notifier := service.NewChangeNotifier(changes, app.decisions, board)

	app.reservations = service.NewReservationService(reservationRepository, cfg.Event, salesGate, notifier, retry)
	app.redemptions = service.NewRedemptionService(reservationRepository, board, notifier, retry)
	app.events = service.NewEventService(cfg.Event, salesGate)
	app.hub = notify.NewHub(cfg.Queue.BufferSize)
	app.worker = worker.NewChangeWorker(app.reservations, changes, board, app.hub)

	log.Info("Components ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("queue", cfg.Queue.Driver),
		zap.String("admin_source", cfg.Auth.AdminSource))

	return app, nil
}

func (a *App) Router() *gin.Engine {
	router := gin.Default()
	router.ContextWithFallback = true

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	handler.NewEventHandler(a.events).RegisterRoutes(router, a.authenticate)
	handler.NewReservationHandler(a.reservations).RegisterRoutes(router, a.authenticate)
	handler.NewRedemptionHandler(a.redemptions).RegisterRoutes(router, a.authenticate)
	handler.NewChangeStreamHandler(a.hub).RegisterRoutes(router, a.authenticate)

	return router
}

// seedAdmins 管理員名單存在資料庫時，把設定檔中的身分寫入
func (a *App) seedAdmins(ctx context.Context, identities []string) error {
	if a.admins == nil {
		return nil
	}
	for _, identity := range identities {
		if err := a.admins.Add(ctx, identity); err != nil {
			return fmt.Errorf("seed admin %q: %w", identity, err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.decisions != nil {
		if err := a.decisions.Close(); err != nil {
			logger.WithComponent("server").Warn("Failed to close decision publisher", zap.Error(err))
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
