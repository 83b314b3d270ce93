package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

// OrderStore implements store.OrderStore on SQLite.
type OrderStore struct {
	d *DB
}

// CreateOrder persists the order and its lines in one transaction.
// The total is computed server-side from the line snapshots.
func (s *OrderStore) CreateOrder(ctx context.Context, in store.NewOrder) (*store.Order, error) {
	total := 0.0
	for _, it := range in.Items {
		total += it.UnitPrice * float64(it.Quantity)
	}
	now := time.Now().UTC()

	tx, err := s.d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order := &store.Order{
		Number:         uuid.NewString(),
		OwnerID:        in.OwnerID,
		ConversationID: in.ConversationID,
		CustomerName:   in.CustomerName,
		Contact:        in.Contact,
		Notes:          in.Notes,
		Status:         store.StatusNew,
		Total:          total,
		CreatedAt:      now,
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (number, owner_id, conversation_id, customer_name, contact, notes, status, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.Number, order.OwnerID, order.ConversationID, order.CustomerName,
		order.Contact, order.Notes, string(order.Status), order.Total,
		now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	order.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}

	for _, it := range in.Items {
		lineRes, err := tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, it.ProductID, it.Name, it.Quantity, it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("insert order line: %w", err)
		}
		lineID, err := lineRes.LastInsertId()
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, store.OrderLine{
			ID:        lineID,
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}
	return order, nil
}

// OrdersForConversation returns the newest orders first, lines included.
func (s *OrderStore) OrdersForConversation(ctx context.Context, conversationID string, limit int) ([]*store.Order, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.d.db.QueryContext(ctx, `
		SELECT id, number, owner_id, conversation_id, customer_name, contact, notes, status, total, created_at
		FROM orders
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []*store.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range out {
		if err := s.loadLines(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetOrder loads one order with its lines.
func (s *OrderStore) GetOrder(ctx context.Context, id int64) (*store.Order, error) {
	row := s.d.db.QueryRowContext(ctx, `
		SELECT id, number, owner_id, conversation_id, customer_name, contact, notes, status, total, created_at
		FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// CancelOrder flips the order to CANCELLED, but only while the status
// still allows it. The check and the update are one statement, so a
// concurrent status change cannot slip a cancel past the guard.
func (s *OrderStore) CancelOrder(ctx context.Context, id int64) (*store.Order, error) {
	res, err := s.d.db.ExecContext(ctx, `
		UPDATE orders SET status = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(store.StatusCancelled), id, string(store.StatusNew), string(store.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Distinguish a missing order from one past the point of return.
		o, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		return o, store.ErrNotCancellable
	}
	return s.GetOrder(ctx, id)
}

func (s *OrderStore) loadLines(ctx context.Context, o *store.Order) error {
	rows, err := s.d.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, name, quantity, unit_price
		FROM order_lines WHERE order_id = ? ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l store.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Name, &l.Quantity, &l.UnitPrice); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		o.Items = append(o.Items, l)
	}
	return rows.Err()
}

func scanOrder(row rowScanner) (*store.Order, error) {
	var (
		o         store.Order
		status    string
		createdAt string
	)
	err := row.Scan(&o.ID, &o.Number, &o.OwnerID, &o.ConversationID, &o.CustomerName,
		&o.Contact, &o.Notes, &status, &o.Total, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = store.OrderStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		o.CreatedAt = t
	}
	return &o, nil
}
