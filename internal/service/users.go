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

// ErrUserNotFound is returned for Telegram accounts that never ran /start.
var ErrUserNotFound = errors.New("user not registered")

// UserService manages buyer accounts and balances.
type UserService struct {
	db *sqlx.DB
}

func NewUserService(db *sqlx.DB) *UserService {
	return &UserService{db: db}
}

// ByTelegramID loads a buyer by their Telegram account id.
func (s *UserService) ByTelegramID(ctx context.Context, telegramID int64) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
SELECT id, telegram_id, username, balance, registered_at
FROM users
WHERE telegram_id = $1`, telegramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("users: by telegram id %d: %w", telegramID, err)
	}
	return u, nil
}

// Register creates the buyer on first /start or refreshes the stored
// username on repeat runs.
func (s *UserService) Register(ctx context.Context, telegramID int64, username string) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
INSERT INTO users (telegram_id, username)
VALUES ($1, $2)
ON CONFLICT (telegram_id) DO UPDATE SET username = EXCLUDED.username
RETURNING id, telegram_id, username, balance, registered_at`, telegramID, username)
	if err != nil {
		return models.User{}, fmt.Errorf("users: register %d: %w", telegramID, err)
	}
	return u, nil
}

// Balance returns the buyer's current balance.
func (s *UserService) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.GetContext(ctx, &balance, `SELECT balance FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("users: balance of %d: %w", userID, err)
	}
	return balance, nil
}

// CanAfford reports whether the buyer's balance covers amount. This is a
// pre-check only; the authoritative guard is the debit inside the
// purchase transaction.
func (s *UserService) CanAfford(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance.GreaterThanOrEqual(amount), nil
}
