package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"log/slog"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/internal/models"
	"github.com/m3rciful/shopbot/internal/storefront"
)

// PurchaseStore implements the transactional side of fulfillment on top
// of Postgres. InTx hands the flow a transaction-scoped store so the
// debit, allocation, order and mark-sold writes commit or roll back as
// one unit.
type PurchaseStore struct {
	db *sqlx.DB
}

var (
	_ storefront.Transactor = (*PurchaseStore)(nil)
	_ storefront.Tx         = (*purchaseTx)(nil)
	_ storefront.Catalog    = (*CatalogService)(nil)
	_ storefront.Wallet     = (*UserService)(nil)
)

func NewPurchaseStore(db *sqlx.DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

// InTx runs fn inside a single READ COMMITTED transaction.
func (s *PurchaseStore) InTx(ctx context.Context, fn func(tx storefront.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("purchase: begin tx: %w", err)
	}

	if err := fn(&purchaseTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error(ctx, "svc.orders", "tx.rollback_failed",
				slog.String("err", rbErr.Error()),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("purchase: commit: %w", err)
	}
	return nil
}

type purchaseTx struct {
	tx *sqlx.Tx
}

// DebitBalance subtracts amount from the buyer's balance. The balance
// condition in the UPDATE is the authoritative funds check: zero rows
// affected means the balance no longer covers the charge.
func (p *purchaseTx) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	res, err := p.tx.ExecContext(ctx,
		`UPDATE users SET balance = balance - $2 WHERE id = $1 AND balance >= $2`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("purchase: debit user %d: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("purchase: debit user %d: %w", userID, err)
	}
	if affected == 0 {
		return storefront.ErrInsufficientFunds
	}
	return nil
}

// AllocateUnsold locks quantity unsold items of a position. SKIP LOCKED
// keeps concurrent purchases from queueing on each other's rows; when
// fewer than quantity rows remain lockable the purchase lost the race.
func (p *purchaseTx) AllocateUnsold(ctx context.Context, subcategoryID int64, quantity int) ([]models.Item, error) {
	var items []models.Item
	err := p.tx.SelectContext(ctx, &items, `
SELECT id, subcategory_id, price, description, private_data, is_sold
FROM items
WHERE subcategory_id = $1 AND NOT is_sold
ORDER BY id
LIMIT $2
FOR UPDATE SKIP LOCKED`, subcategoryID, quantity)
	if err != nil {
		return nil, fmt.Errorf("purchase: allocate %d of %d: %w", quantity, subcategoryID, err)
	}
	if len(items) < quantity {
		return nil, storefront.ErrAllocationRace
	}
	return items, nil
}

// CreateOrder inserts the order row with a fresh external reference.
func (p *purchaseTx) CreateOrder(ctx context.Context, userID int64, quantity int, total decimal.Decimal) (models.Order, error) {
	var order models.Order
	err := p.tx.GetContext(ctx, &order, `
INSERT INTO orders (reference, user_id, quantity, total)
VALUES ($1, $2, $3, $4)
RETURNING id, reference, user_id, quantity, total, created_at`,
		uuid.NewString(), userID, quantity, total)
	if err != nil {
		return models.Order{}, fmt.Errorf("purchase: create order: %w", err)
	}
	return order, nil
}

// AddOrderItems links the allocated items to the order. The unique
// constraint on item_id rejects any item that somehow got sold twice.
func (p *purchaseTx) AddOrderItems(ctx context.Context, orderID int64, items []models.Item) error {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	_, err := p.tx.ExecContext(ctx, `
INSERT INTO order_items (order_id, item_id)
SELECT $1, unnest($2::bigint[])`, orderID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("purchase: add order items: %w", err)
	}
	return nil
}

// MarkSold flips the allocated items out of the catalog.
func (p *purchaseTx) MarkSold(ctx context.Context, items []models.Item) error {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	res, err := p.tx.ExecContext(ctx,
		`UPDATE items SET is_sold = TRUE WHERE id = ANY($1) AND NOT is_sold`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("purchase: mark sold: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("purchase: mark sold: %w", err)
	}
	if affected != int64(len(ids)) {
		// Should be unreachable while the rows are locked.
		return fmt.Errorf("purchase: marked %d of %d items sold", affected, len(ids))
	}
	return nil
}
