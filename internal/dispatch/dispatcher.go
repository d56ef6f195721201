// Package dispatch реализует отправку пуш-уведомления о новом заказе.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/order-alert-system/internal/metrics"
	"github.com/mmeshcher/order-alert-system/internal/model"
	"github.com/mmeshcher/order-alert-system/internal/push"
	"github.com/mmeshcher/order-alert-system/internal/repository"
)

// Параметры отображения уведомления в нативном приложении администратора.
// Имена звука и канала должны совпадать с ресурсами Android-приложения.
const (
	notificationSound   = "order_alert"
	notificationChannel = "orders_urgent"
	notificationClick   = "FCM_PLUGIN_ACTIVITY"
	notificationIcon    = "ic_stat_icon_name"
)

const closeTimeout = 5 * time.Second

// Store описывает контракт доступа к данным, используемый диспетчером.
type Store interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetDeliveryToken(ctx context.Context, adminID string) (*model.DeliveryToken, error)
	DeleteDeliveryToken(ctx context.Context, adminID string) error
	Listen(ctx context.Context, channel string) (repository.Listener, error)
}

// Sender описывает контракт доставки сформированного сообщения.
type Sender interface {
	Send(ctx context.Context, msg *push.Message) error
}

// Dispatcher слушает события создания заказов и выполняет по одной попытке
// доставки уведомления единственному настроенному администратору.
type Dispatcher struct {
	store   Store
	sender  Sender
	adminID string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewDispatcher создаёт диспетчер уведомлений для указанного администратора.
func NewDispatcher(store Store, sender Sender, adminID string, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:   store,
		sender:  sender,
		adminID: adminID,
		logger:  logger,
		metrics: m,
	}
}

// Run подписывается на канал событий создания заказов и обрабатывает их до
// отмены контекста.
func (d *Dispatcher) Run(ctx context.Context) error {
	listener, err := d.store.Listen(ctx, repository.ChannelOrderCreated)
	if err != nil {
		d.logger.Error("listen order created", zap.Error(err))
		return nil
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := listener.Close(closeCtx); err != nil {
			d.logger.Warn("close dispatcher listener", zap.Error(err))
		}
	}()

	for {
		orderID, err := listener.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Потеря канала событий не фатальна для процесса: новые заказы
			// продолжают приниматься, страдает только доставка уведомлений.
			d.logger.Error("order created channel lost", zap.Error(err))
			return nil
		}

		d.HandleOrderCreated(ctx, orderID)
	}
}

// HandleOrderCreated обрабатывает одно событие создания заказа.
//
// Обработчик срабатывает по принципу «выстрелил и забыл»: любая ошибка
// логируется, наружу не поднимается, повторных попыток нет. Пустой payload
// события — корректный вход, обработка молча завершается.
func (d *Dispatcher) HandleOrderCreated(ctx context.Context, orderID string) {
	if orderID == "" {
		return
	}

	order, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		d.logger.Error("load created order", zap.Error(err), zap.String("orderID", orderID))
		return
	}

	token, err := d.store.GetDeliveryToken(ctx, d.adminID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			d.logger.Warn("delivery token not found, alert skipped", zap.String("adminID", d.adminID))
			return
		}
		d.logger.Error("load delivery token", zap.Error(err), zap.String("adminID", d.adminID))
		return
	}

	msg := BuildMessage(order, token.Token)

	if err := d.sender.Send(ctx, msg); err != nil {
		if d.metrics != nil {
			d.metrics.NotificationsFailed.Inc()
		}
		d.logger.Error("send notification", zap.Error(err), zap.String("orderID", orderID))

		// Мёртвый токен удаляется, иначе неудачные доставки повторялись бы
		// до случайной перезаписи свежим токеном.
		if errors.Is(err, push.ErrTokenNotRegistered) {
			if delErr := d.store.DeleteDeliveryToken(ctx, d.adminID); delErr != nil {
				d.logger.Error("prune dead delivery token", zap.Error(delErr), zap.String("adminID", d.adminID))
			}
		}
		return
	}

	if d.metrics != nil {
		d.metrics.NotificationsSent.Inc()
	}
	d.logger.Info("notification sent", zap.String("orderID", orderID))
}

// BuildMessage формирует кроссплатформенное сообщение о новом заказе.
func BuildMessage(order *model.Order, token string) *push.Message {
	o := order.Normalized()

	title := fmt.Sprintf("New order from %s!", o.CustomerName)
	body := fmt.Sprintf("Total: $%s - Items: %d", FormatTotal(o.Total), len(o.Items))

	return &push.Message{
		Data: map[string]string{
			"orderId":    o.ID,
			"type":       "new_order",
			"title":      title,
			"body":       body,
			"priority":   "high",
			"sound":      notificationSound,
			"channel_id": notificationChannel,
		},
		Android: &push.AndroidConfig{
			// high будит устройство из режима энергосбережения
			Priority: "high",
			Notification: push.AndroidNotification{
				Title:       title,
				Body:        body,
				ChannelID:   notificationChannel,
				Sound:       notificationSound,
				ClickAction: notificationClick,
				Visibility:  "PUBLIC",
				Icon:        notificationIcon,
			},
		},
		Token: token,
	}
}

// FormatTotal переводит сумму из минорных единиц в строку с двумя знаками.
func FormatTotal(total int64) string {
	return fmt.Sprintf("%.2f", float64(total)/100)
}
