package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/shopbot/internal/models"
)

// CatalogService serves read-only storefront queries backed by Postgres.
// Everything it returns is filtered to unsold stock.
type CatalogService struct {
	db *sqlx.DB
}

func NewCatalogService(db *sqlx.DB) *CatalogService {
	return &CatalogService{db: db}
}

const unsoldCategoriesQuery = `
SELECT c.id, c.name
FROM categories c
WHERE EXISTS (
    SELECT 1
    FROM subcategories s
    JOIN items i ON i.subcategory_id = s.id
    WHERE s.category_id = c.id AND NOT i.is_sold
)
ORDER BY c.name
LIMIT $1 OFFSET $2`

// UnsoldCategories returns one page of categories that still have stock.
func (s *CatalogService) UnsoldCategories(ctx context.Context, page, perPage int) ([]models.Category, error) {
	var cats []models.Category
	err := s.db.SelectContext(ctx, &cats, unsoldCategoriesQuery, perPage, page*perPage)
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	return cats, nil
}

// CategoryMaxPage returns the last page index of the category listing.
func (s *CatalogService) CategoryMaxPage(ctx context.Context, perPage int) (int, error) {
	const q = `
SELECT COUNT(*)
FROM categories c
WHERE EXISTS (
    SELECT 1
    FROM subcategories s
    JOIN items i ON i.subcategory_id = s.id
    WHERE s.category_id = c.id AND NOT i.is_sold
)`
	var count int
	if err := s.db.GetContext(ctx, &count, q); err != nil {
		return 0, fmt.Errorf("catalog: count categories: %w", err)
	}
	return maxPage(count, perPage), nil
}

const unsoldSubcategoriesQuery = `
SELECT s.id, s.category_id, s.name
FROM subcategories s
WHERE s.category_id = $1
  AND EXISTS (SELECT 1 FROM items i WHERE i.subcategory_id = s.id AND NOT i.is_sold)
ORDER BY s.name
LIMIT $2 OFFSET $3`

// UnsoldSubcategories returns one page of a category's positions that
// still have stock.
func (s *CatalogService) UnsoldSubcategories(ctx context.Context, categoryID int64, page, perPage int) ([]models.Subcategory, error) {
	var subs []models.Subcategory
	err := s.db.SelectContext(ctx, &subs, unsoldSubcategoriesQuery, categoryID, perPage, page*perPage)
	if err != nil {
		return nil, fmt.Errorf("catalog: list subcategories: %w", err)
	}
	return subs, nil
}

// SubcategoryMaxPage returns the last page index of a category's listing.
func (s *CatalogService) SubcategoryMaxPage(ctx context.Context, categoryID int64, perPage int) (int, error) {
	const q = `
SELECT COUNT(*)
FROM subcategories s
WHERE s.category_id = $1
  AND EXISTS (SELECT 1 FROM items i WHERE i.subcategory_id = s.id AND NOT i.is_sold)`
	var count int
	if err := s.db.GetContext(ctx, &count, q, categoryID); err != nil {
		return 0, fmt.Errorf("catalog: count subcategories: %w", err)
	}
	return maxPage(count, perPage), nil
}

// Subcategory loads a single position by id.
func (s *CatalogService) Subcategory(ctx context.Context, subcategoryID int64) (models.Subcategory, error) {
	var sub models.Subcategory
	err := s.db.GetContext(ctx, &sub,
		`SELECT id, category_id, name FROM subcategories WHERE id = $1`, subcategoryID)
	if err != nil {
		return models.Subcategory{}, fmt.Errorf("catalog: subcategory %d: %w", subcategoryID, err)
	}
	return sub, nil
}

// Price returns the current unit price of a position: the cheapest unsold
// item. Returns zero with no error when the position is sold out.
func (s *CatalogService) Price(ctx context.Context, subcategoryID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.db.GetContext(ctx, &price,
		`SELECT COALESCE(MIN(price), 0) FROM items WHERE subcategory_id = $1 AND NOT is_sold`,
		subcategoryID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("catalog: price of %d: %w", subcategoryID, err)
	}
	return price, nil
}

// AvailableQuantity counts unsold items of a position.
func (s *CatalogService) AvailableQuantity(ctx context.Context, subcategoryID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM items WHERE subcategory_id = $1 AND NOT is_sold`, subcategoryID)
	if err != nil {
		return 0, fmt.Errorf("catalog: stock of %d: %w", subcategoryID, err)
	}
	return count, nil
}

// Description returns the display description of a position, taken from
// any unsold item (items of one position share their description).
func (s *CatalogService) Description(ctx context.Context, subcategoryID int64) (string, error) {
	var desc string
	err := s.db.GetContext(ctx, &desc,
		`SELECT description FROM items WHERE subcategory_id = $1 AND NOT is_sold ORDER BY id LIMIT 1`,
		subcategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("catalog: description of %d: %w", subcategoryID, err)
	}
	return desc, nil
}

// maxPage converts a row count into the last zero-based page index.
func maxPage(count, perPage int) int {
	if perPage <= 0 || count <= 0 {
		return 0
	}
	return (count - 1) / perPage
}
