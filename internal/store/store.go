package store

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"canteen/backend/internal/domain"
)

// MaxPiecesSold caps a single sales row. Increments that would push a row
// past it are rejected as invalid input.
const MaxPiecesSold = math.MaxInt32

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// Repository is the canteen data store. Date arguments are calendar days
// (midnight UTC); ranges are half-open [from, to).
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	CreateInventory(ctx context.Context, inv domain.Inventory) (*domain.Inventory, error)
	ListInventoryByDate(ctx context.Context, day time.Time) ([]domain.Inventory, error)
	LatestInventoryOnOrBefore(ctx context.Context, productID int64, day time.Time) (*domain.Inventory, error)
	EarliestInventoryBetween(ctx context.Context, productID int64, from time.Time, to time.Time) (*domain.Inventory, error)

	// AddSales increments pieces_sold for every entry on day, creating rows as
	// needed. The whole batch is applied atomically.
	AddSales(ctx context.Context, day time.Time, entries []domain.SalesEntry) ([]domain.Sales, error)
	ListSalesByDate(ctx context.Context, day time.Time) ([]domain.Sales, error)
	SumPiecesSold(ctx context.Context, productID int64, from time.Time, to time.Time) (int64, error)

	CreateExpenditure(ctx context.Context, exp domain.Expenditure) (*domain.Expenditure, error)
	ListExpenditures(ctx context.Context, from time.Time, to time.Time) ([]domain.Expenditure, error)
	SumExpenditure(ctx context.Context, productID int64, from time.Time, to time.Time) (decimal.Decimal, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
