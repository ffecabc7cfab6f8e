package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups subcategories in the storefront catalog.
type Category struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Subcategory is the sellable position the buyer actually picks.
type Subcategory struct {
	ID         int64  `db:"id"`
	CategoryID int64  `db:"category_id"`
	Name       string `db:"name"`
}

// Item is a single unit of inventory. PrivateData is the payload the
// buyer receives after purchase; it never appears in catalog views.
type Item struct {
	ID            int64           `db:"id"`
	SubcategoryID int64           `db:"subcategory_id"`
	Price         decimal.Decimal `db:"price"`
	Description   string          `db:"description"`
	PrivateData   string          `db:"private_data"`
	Sold          bool            `db:"is_sold"`
}

// User is a registered buyer with a prepaid balance.
type User struct {
	ID           int64           `db:"id"`
	TelegramID   int64           `db:"telegram_id"`
	Username     string          `db:"username"`
	Balance      decimal.Decimal `db:"balance"`
	RegisteredAt time.Time       `db:"registered_at"`
}

// Order records a completed purchase. Reference is an external UUID used
// in receipts and notifications.
type Order struct {
	ID        int64           `db:"id"`
	Reference string          `db:"reference"`
	UserID    int64           `db:"user_id"`
	Quantity  int             `db:"quantity"`
	Total     decimal.Decimal `db:"total"`
	CreatedAt time.Time       `db:"created_at"`
}

// OrderItem links one allocated inventory item to its order.
type OrderItem struct {
	ID      int64 `db:"id"`
	OrderID int64 `db:"order_id"`
	ItemID  int64 `db:"item_id"`
}
