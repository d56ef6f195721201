// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/order-alert-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Каналы уведомлений PostgreSQL, которые заполняет триггер на таблице orders.
const (
	// ChannelOrderEvents получает идентификатор заказа при любом изменении коллекции.
	ChannelOrderEvents = "order_events"
	// ChannelOrderCreated получает идентификатор только что созданного заказа.
	ChannelOrderCreated = "order_created"
)

// ErrOrderNotFound возвращается, если заказ с указанным идентификатором не найден.
var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrTokenNotFound возвращается, если для администратора не сохранён токен доставки.
	ErrTokenNotFound = errors.New("delivery token not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateOrder сохраняет новый заказ и возвращает присвоенный идентификатор.
// Триггер БД разошлёт уведомления в каналы order_events и order_created.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (string, error) {
	id := uuid.NewString()

	err := r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO orders (id, customer_name, total, items, address, phone, payment_method, note)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, o.CustomerName, o.Total, o.Items, o.Address, o.Phone, o.PaymentMethod, o.Note,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}

	return id, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, customer_name, total, items, address, phone, payment_method, note, created_at, reviewed
		 FROM orders
		 WHERE id = $1`,
		id,
	)

	var o model.Order
	err := row.Scan(&o.ID, &o.CustomerName, &o.Total, &o.Items, &o.Address,
		&o.Phone, &o.PaymentMethod, &o.Note, &o.CreatedAt, &o.Reviewed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return &o, nil
}

// ListOrders возвращает все заказы, отсортированные по убыванию времени создания.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_name, total, items, address, phone, payment_method, note, created_at, reviewed
		 FROM orders
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.Total, &o.Items, &o.Address,
			&o.Phone, &o.PaymentMethod, &o.Note, &o.CreatedAt, &o.Reviewed); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// MarkReviewed помечает заказ просмотренным. Повторный вызов для уже
// просмотренного заказа не является ошибкой.
func (r *PostgresRepository) MarkReviewed(ctx context.Context, id string) error {
	var cmdTag pgconn.CommandTag
	err := r.withRetry(ctx, func() error {
		var err error
		cmdTag, err = r.pool.Exec(ctx,
			`UPDATE orders SET reviewed = true WHERE id = $1`,
			id,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark reviewed: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// GetDeliveryToken возвращает токен доставки уведомлений для администратора.
func (r *PostgresRepository) GetDeliveryToken(ctx context.Context, adminID string) (*model.DeliveryToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT admin_id, token, last_active, device_info FROM admin_tokens WHERE admin_id = $1`,
		adminID,
	)

	var t model.DeliveryToken
	err := row.Scan(&t.AdminID, &t.Token, &t.LastActive, &t.DeviceInfo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("get delivery token: %w", err)
	}

	return &t, nil
}

// SaveDeliveryToken сохраняет токен доставки, перезаписывая предыдущий.
func (r *PostgresRepository) SaveDeliveryToken(ctx context.Context, t *model.DeliveryToken) error {
	err := r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO admin_tokens (admin_id, token, last_active, device_info)
			 VALUES ($1, $2, now(), $3)
			 ON CONFLICT (admin_id) DO UPDATE
			 SET token = EXCLUDED.token, last_active = now(), device_info = EXCLUDED.device_info`,
			t.AdminID, t.Token, t.DeviceInfo,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save delivery token: %w", err)
	}
	return nil
}

// DeleteDeliveryToken удаляет токен доставки администратора.
func (r *PostgresRepository) DeleteDeliveryToken(ctx context.Context, adminID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM admin_tokens WHERE admin_id = $1`,
		adminID,
	)
	if err != nil {
		return fmt.Errorf("delete delivery token: %w", err)
	}
	return nil
}

// Listener — подписка на канал уведомлений. Wait блокируется до прихода
// очередного уведомления и возвращает его payload; Close освобождает
// занятое соединение.
type Listener interface {
	Wait(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

type channelListener struct {
	conn    *pgxpool.Conn
	channel string
}

// Listen занимает выделенное соединение из пула и подписывается на канал.
// Одновременно на один канал держится не более одной подписки на процесс:
// перед повторным Listen обязателен Close предыдущего слушателя.
func (r *PostgresRepository) Listen(ctx context.Context, channel string) (Listener, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	return &channelListener{conn: conn, channel: channel}, nil
}

func (l *channelListener) Wait(ctx context.Context) (string, error) {
	n, err := l.conn.Conn().WaitForNotification(ctx)
	if err != nil {
		return "", fmt.Errorf("wait for notification: %w", err)
	}
	return n.Payload, nil
}

func (l *channelListener) Close(ctx context.Context) error {
	defer l.conn.Release()

	if _, err := l.conn.Exec(ctx, "UNLISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("unlisten %s: %w", l.channel, err)
	}
	return nil
}
