package storefront

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/shopbot/internal/models"
)

// Catalog provides read-only catalog queries. All listings are filtered
// to positions that still have unsold items.
type Catalog interface {
	UnsoldCategories(ctx context.Context, page, perPage int) ([]models.Category, error)
	CategoryMaxPage(ctx context.Context, perPage int) (int, error)
	UnsoldSubcategories(ctx context.Context, categoryID int64, page, perPage int) ([]models.Subcategory, error)
	SubcategoryMaxPage(ctx context.Context, categoryID int64, perPage int) (int, error)
	Subcategory(ctx context.Context, subcategoryID int64) (models.Subcategory, error)
	Price(ctx context.Context, subcategoryID int64) (decimal.Decimal, error)
	AvailableQuantity(ctx context.Context, subcategoryID int64) (int, error)
	Description(ctx context.Context, subcategoryID int64) (string, error)
}

// Wallet answers balance questions outside the purchase transaction.
type Wallet interface {
	CanAfford(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error)
}

// Tx is the transaction-scoped store used by fulfillment. Every method
// runs inside the same database transaction; any returned error aborts
// the whole purchase.
type Tx interface {
	DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	AllocateUnsold(ctx context.Context, subcategoryID int64, quantity int) ([]models.Item, error)
	CreateOrder(ctx context.Context, userID int64, quantity int, total decimal.Decimal) (models.Order, error)
	AddOrderItems(ctx context.Context, orderID int64, items []models.Item) error
	MarkSold(ctx context.Context, items []models.Item) error
}

// Transactor runs fn inside a single database transaction, committing on
// nil and rolling back on error.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// PurchaseNotice describes a completed purchase for the owner channel.
type PurchaseNotice struct {
	OrderID       int64
	OrderRef      string
	Subcategory   string
	Quantity      int
	Total         decimal.Decimal
	BuyerID       int64
	BuyerUsername string
}

// Notifier delivers purchase notices. Implementations are fire-and-forget:
// delivery failure must never affect the purchase outcome.
type Notifier interface {
	NotifyPurchase(ctx context.Context, n PurchaseNotice)
}

// Texts resolves localized message templates by key.
type Texts interface {
	Text(key string, args ...any) string
}

// quantitySteps are the fixed quantity candidates offered to the buyer.
// Candidates exceeding available stock are filtered per request.
var quantitySteps = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 20, 50, 100}

const (
	defaultCategoriesPerPage    = 10
	defaultSubcategoriesPerPage = 10

	categoryButtonsPerRow = 2
	quantityButtonsPerRow = 3
)

// Deps bundles the collaborators of the purchase flow.
type Deps struct {
	Catalog    Catalog
	Wallet     Wallet
	Transactor Transactor
	Notifier   Notifier
	Texts      Texts

	CategoriesPerPage    int
	SubcategoriesPerPage int
}

// Flow implements the stateless purchase wizard. Each Dispatch call takes
// a decoded token, performs the step it names, and returns the next view;
// no state survives between calls.
type Flow struct {
	catalog    Catalog
	wallet     Wallet
	transactor Transactor
	notifier   Notifier
	texts      Texts

	categoriesPerPage    int
	subcategoriesPerPage int
}

// NewFlow builds a Flow from its collaborators.
func NewFlow(deps Deps) *Flow {
	f := &Flow{
		catalog:              deps.Catalog,
		wallet:               deps.Wallet,
		transactor:           deps.Transactor,
		notifier:             deps.Notifier,
		texts:                deps.Texts,
		categoriesPerPage:    deps.CategoriesPerPage,
		subcategoriesPerPage: deps.SubcategoriesPerPage,
	}
	if f.categoriesPerPage <= 0 {
		f.categoriesPerPage = defaultCategoriesPerPage
	}
	if f.subcategoriesPerPage <= 0 {
		f.subcategoriesPerPage = defaultSubcategoriesPerPage
	}
	return f
}

// paginationRow builds prev/next buttons for the given page. base must
// carry every field the target step needs; only Page is changed.
func (f *Flow) paginationRow(base Token, page, maxPage int) []Button {
	var row []Button
	if page > 0 {
		prev := base
		prev.Page = page - 1
		row = append(row, Button{Label: f.texts.Text("page_prev"), Token: prev})
	}
	if page < maxPage {
		next := base
		next.Page = page + 1
		row = append(row, Button{Label: f.texts.Text("page_next"), Token: next})
	}
	return row
}
