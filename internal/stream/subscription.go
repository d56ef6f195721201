// Package stream реализует живую подписку на коллекцию заказов.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/order-alert-system/internal/metrics"
	"github.com/mmeshcher/order-alert-system/internal/model"
	"github.com/mmeshcher/order-alert-system/internal/repository"
)

const closeTimeout = 5 * time.Second

// ErrAlreadyRunning возвращается при попытке запустить подписку, пока
// предыдущая ещё не освобождена.
var ErrAlreadyRunning = errors.New("subscription is already running")

// Source описывает контракт доступа к коллекции заказов и каналу уведомлений.
type Source interface {
	ListOrders(ctx context.Context) ([]model.Order, error)
	Listen(ctx context.Context, channel string) (repository.Listener, error)
}

// SnapshotFunc получает полный снимок коллекции на каждой эмиссии.
type SnapshotFunc func(orders []model.Order)

// ErrorFunc получает ошибку потока. После её вызова подписка завершена.
type ErrorFunc func(err error)

// Subscription держит ровно одно живое подключение к каналу изменений
// коллекции заказов. На старте и на каждом уведомлении доставляет
// обработчику полный упорядоченный снимок коллекции.
type Subscription struct {
	source     Source
	onSnapshot SnapshotFunc
	onError    ErrorFunc
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	running bool
}

// New создаёт подписку на коллекцию заказов.
func New(source Source, onSnapshot SnapshotFunc, onError ErrorFunc, logger *zap.Logger, m *metrics.Metrics) *Subscription {
	return &Subscription{
		source:     source,
		onSnapshot: onSnapshot,
		onError:    onError,
		logger:     logger,
		metrics:    m,
	}
}

// Run устанавливает подписку и доставляет снимки до отмены контекста.
// Ошибка потока передаётся в onError и завершает подписку: автоматических
// переподключений нет. Сам Run при этом возвращает nil — ошибка потока не
// фатальна для процесса.
func (s *Subscription) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	listener, err := s.source.Listen(ctx, repository.ChannelOrderEvents)
	if err != nil {
		s.fail(fmt.Errorf("listen order events: %w", err))
		return nil
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := listener.Close(closeCtx); err != nil {
			s.logger.Warn("close stream listener", zap.Error(err))
		}
	}()

	// Первый снимок — базовая линия сессии.
	if err := s.emit(ctx); err != nil {
		s.fail(err)
		return nil
	}

	for {
		if _, err := listener.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.fail(err)
			return nil
		}

		if err := s.emit(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.fail(err)
			return nil
		}
	}
}

// emit перечитывает авторитетный снимок коллекции и доставляет его обработчику.
func (s *Subscription) emit(ctx context.Context) error {
	orders, err := s.source.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("load orders snapshot: %w", err)
	}

	if s.metrics != nil {
		s.metrics.StreamEmissions.Inc()
	}

	s.onSnapshot(orders)
	return nil
}

func (s *Subscription) fail(err error) {
	s.logger.Error("order stream failed", zap.Error(err))
	if s.onError != nil {
		s.onError(err)
	}
}
