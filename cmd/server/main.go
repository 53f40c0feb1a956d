package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-gin-reservation-ledger/config"
	"go-gin-reservation-ledger/internal/database"
	"go-gin-reservation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logger.WithComponent("server").Error("Server exited", zap.Error(err))
		_ = logger.L.Sync()
		os.Exit(1)
	}
	_ = logger.L.Sync()
}

func run() error {
	var (
		port          string
		envFile       string
		eventConfig   string
		migrate       bool
		migrationsDir string
	)

	flagSet := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flagSet.StringVarP(&port, "port", "p", "", "HTTP port (overrides APP_PORT)")
	flagSet.StringVar(&envFile, "env-file", "", "load environment from this file instead of .env")
	flagSet.StringVar(&eventConfig, "event-config", "", "YAML event catalog (overrides EVENT_CONFIG_FILE)")
	flagSet.BoolVar(&migrate, "migrate", false, "apply SQL migrations before serving")
	flagSet.StringVar(&migrationsDir, "migrations", "migrations", "directory of SQL migrations")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if eventConfig != "" {
		if err := os.Setenv("EVENT_CONFIG_FILE", eventConfig); err != nil {
			return err
		}
	}
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.LoadConfig(envFiles...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != "" {
		cfg.Server.Port = port
	}
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if migrate {
		if app.pool == nil {
			return errors.New("--migrate requires STORE_DRIVER=postgres")
		}
		if err := database.ApplyMigrations(ctx, app.pool, migrationsDir); err != nil {
			return err
		}
	}
	if err := app.seedAdmins(ctx, cfg.Auth.AdminIdentities); err != nil {
		return err
	}

	return serve(ctx, cfg, app)
}

// serve HTTP 伺服器與變更 worker 一起啟動，任一個結束就全部關閉
func serve(ctx context.Context, cfg *config.Config, app *App) error {
	log := logger.WithComponent("server")

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return app.worker.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
