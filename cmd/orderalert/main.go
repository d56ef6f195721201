// Package main запускает HTTP-сервер панели заказов ресторана.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/order-alert-system/internal/config"
	"github.com/mmeshcher/order-alert-system/internal/dispatch"
	"github.com/mmeshcher/order-alert-system/internal/handler"
	"github.com/mmeshcher/order-alert-system/internal/metrics"
	"github.com/mmeshcher/order-alert-system/internal/middleware"
	"github.com/mmeshcher/order-alert-system/internal/model"
	"github.com/mmeshcher/order-alert-system/internal/push"
	"github.com/mmeshcher/order-alert-system/internal/reconcile"
	"github.com/mmeshcher/order-alert-system/internal/repository"
	"github.com/mmeshcher/order-alert-system/internal/stream"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	rec := reconcile.New()
	hub := handler.NewLiveHub(logger, m)

	sub := stream.New(repo,
		func(orders []model.Order) {
			rec.Apply(orders)
			hub.Broadcast(rec.View())
		},
		func(err error) {
			rec.Invalidate()
		},
		logger, m,
	)

	var dispatcher *dispatch.Dispatcher
	if cfg.PushGatewayAddress != "" {
		pushClient := push.NewClient(cfg.PushGatewayAddress)
		dispatcher = dispatch.NewDispatcher(repo, pushClient, cfg.AdminID, logger, m)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(repo, rec, logger, authMiddleware, handler.AdminCredentials{
		ID:       cfg.AdminID,
		Login:    cfg.AdminLogin,
		Password: cfg.AdminPassword,
	}, hub, m)

	r := h.SetupRouter(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Живая подписка на коллекцию заказов
	g.Go(func() error {
		return sub.Run(ctx)
	})

	// Диспетчер пуш-уведомлений о новых заказах
	if dispatcher != nil {
		g.Go(func() error {
			return dispatcher.Run(ctx)
		})
	} else {
		sugar.Info("push gateway address is empty, dispatcher disabled")
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting order alert server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
