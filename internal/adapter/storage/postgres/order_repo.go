package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, order_number, customer_id, shop_id, items, subtotal, delivery_fee, service_fee, total,
	status, payment_method, payment_status, payment_reference, delivery_address, delivery_instructions,
	notes, cancel_reason, idempotency_key, estimated_delivery_time, actual_delivery_time, created_at, updated_at`

// OrderRepo implements ports.OrderRepository. Line items and the delivery
// address are stored as JSONB snapshots.
type OrderRepo struct {
	pool Pool
}

func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	address, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("encode delivery address: %w", err)
	}

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NULLIF($18, ''), $19, $20, $21, $22)`

	_, err = on(r.pool, tx).Exec(ctx, query,
		o.ID, o.OrderNumber, o.CustomerID, o.ShopID, items,
		o.Subtotal, o.DeliveryFee, o.ServiceFee, o.Total,
		o.Status, o.PaymentMethod, o.PaymentStatus, o.PaymentReference, address, o.DeliveryInstructions,
		o.Notes, o.CancelReason, o.IdempotencyKey, o.EstimatedDeliveryTime, o.ActualDeliveryTime, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrderRow(r.pool.QueryRow(ctx, query, id), "get order by id")
}

// GetByIDForUpdate locks the order row until tx ends.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrderRow(tx.QueryRow(ctx, query, id), "get order for update")
}

func (r *OrderRepo) GetByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 AND idempotency_key = $2`
	return scanOrderRow(r.pool.QueryRow(ctx, query, customerID, key), "get order by idempotency key")
}

// Update writes the lifecycle and payment columns. Prices and items are
// immutable after placement.
func (r *OrderRepo) Update(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `UPDATE orders SET status = $1, payment_status = $2, payment_reference = $3,
		cancel_reason = $4, actual_delivery_time = $5, updated_at = $6
		WHERE id = $7`

	tag, err := on(r.pool, tx).Exec(ctx, query,
		o.Status, o.PaymentStatus, o.PaymentReference, o.CancelReason, o.ActualDeliveryTime, o.UpdatedAt, o.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", o.ID)
	}
	return nil
}

// List pages through a customer's or a shop's orders, newest first.
func (r *OrderRepo) List(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argIdx))
		args = append(args, *params.CustomerID)
		argIdx++
	}
	if params.ShopID != nil {
		conditions = append(conditions, fmt.Sprintf("shop_id = $%d", argIdx))
		args = append(args, *params.ShopID)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM orders %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, total, nil
}

func scanOrderRow(row pgx.Row, op string) (*domain.Order, error) {
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	var (
		items, address []byte
		idempotencyKey *string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.ShopID, &items,
		&o.Subtotal, &o.DeliveryFee, &o.ServiceFee, &o.Total,
		&o.Status, &o.PaymentMethod, &o.PaymentStatus, &o.PaymentReference, &address, &o.DeliveryInstructions,
		&o.Notes, &o.CancelReason, &idempotencyKey, &o.EstimatedDeliveryTime, &o.ActualDeliveryTime, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if idempotencyKey != nil {
		o.IdempotencyKey = *idempotencyKey
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("decode delivery address: %w", err)
	}
	return o, nil
}
