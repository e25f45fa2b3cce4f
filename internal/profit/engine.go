package profit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"canteen/backend/internal/domain"
)

// ErrNoData means the requested period has nothing to report.
var ErrNoData = errors.New("no data for period")

// AggregateName labels the summary row appended to every report.
const AggregateName = "all"

// AggregatePolicy selects how the monthly summary row derives actual_profit.
type AggregatePolicy string

const (
	// AggregateLegacy subtracts only the last product row's expenditure from
	// the summed profit. It reproduces the numbers of the historical reports.
	AggregateLegacy AggregatePolicy = "legacy"
	// AggregateTotal subtracts the summed expenditure of every row.
	AggregateTotal AggregatePolicy = "total"
)

func ParseAggregatePolicy(raw string) (AggregatePolicy, error) {
	switch AggregatePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", AggregateLegacy:
		return AggregateLegacy, nil
	case AggregateTotal:
		return AggregateTotal, nil
	default:
		return "", fmt.Errorf("unknown aggregate policy %q", raw)
	}
}

// Source is the read side of the store the engine needs.
type Source interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListInventoryByDate(ctx context.Context, day time.Time) ([]domain.Inventory, error)
	ListSalesByDate(ctx context.Context, day time.Time) ([]domain.Sales, error)
	LatestInventoryOnOrBefore(ctx context.Context, productID int64, day time.Time) (*domain.Inventory, error)
	EarliestInventoryBetween(ctx context.Context, productID int64, from time.Time, to time.Time) (*domain.Inventory, error)
	SumPiecesSold(ctx context.Context, productID int64, from time.Time, to time.Time) (int64, error)
	SumExpenditure(ctx context.Context, productID int64, from time.Time, to time.Time) (decimal.Decimal, error)
}

type Engine struct {
	source Source
	policy AggregatePolicy
}

func NewEngine(source Source, policy AggregatePolicy) *Engine {
	if policy == "" {
		policy = AggregateLegacy
	}
	return &Engine{source: source, policy: policy}
}

func (e *Engine) Policy() AggregatePolicy {
	return e.policy
}

var tracer = otel.Tracer("canteen/backend/internal/profit")

type lineTotals struct {
	selling decimal.Decimal
	cost    decimal.Decimal
	profit  decimal.Decimal
}

func computeLine(pieces int64, inv domain.Inventory) lineTotals {
	n := decimal.NewFromInt(pieces)
	selling := n.Mul(inv.SellingPricePerPiece)
	cost := n.Mul(inv.CostPricePerPiece)
	return lineTotals{selling: selling, cost: cost, profit: selling.Sub(cost)}
}
