package profit

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"canteen/backend/internal/domain"
	"canteen/backend/internal/store"
)

// Monthly returns one record per product with activity in the month,
// followed by the aggregate row.
func (e *Engine) Monthly(ctx context.Context, month int, year int) ([]domain.MonthlyProfit, error) {
	ctx, span := tracer.Start(ctx, "profit.Monthly")
	defer span.End()
	span.SetAttributes(
		attribute.Int("report.month", month),
		attribute.Int("report.year", year),
		attribute.String("report.aggregate_policy", string(e.policy)),
	)

	fail := func(err error, msg string) ([]domain.MonthlyProfit, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return nil, err
	}

	from, to := domain.MonthBounds(month, year)
	products, err := e.source.ListProducts(ctx)
	if err != nil {
		return fail(err, "list products failed")
	}

	rows := make([]domain.MonthlyProfit, 0, len(products)+1)
	// lastExpenditure is the expenditure of the last product that had stock in
	// the period, whether or not it made it into the report.
	lastExpenditure := decimal.Zero
	for _, product := range products {
		inv, err := e.inventoryFor(ctx, product.ID, from, to)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fail(err, "inventory lookup failed")
		}

		pieces, err := e.source.SumPiecesSold(ctx, product.ID, from, to)
		if err != nil {
			return fail(err, "sum sales failed")
		}
		expenditure, err := e.source.SumExpenditure(ctx, product.ID, from, to)
		if err != nil {
			return fail(err, "sum expenditure failed")
		}
		lastExpenditure = expenditure
		if pieces == 0 && expenditure.IsZero() {
			continue
		}

		line := computeLine(pieces, *inv)
		rows = append(rows, domain.MonthlyProfit{
			ProductName:          product.Name,
			Month:                month,
			Year:                 year,
			TotalPieces:          inv.TotalPieces,
			PiecesSold:           pieces,
			CostPricePerPiece:    inv.CostPricePerPiece,
			SellingPricePerPiece: inv.SellingPricePerPiece,
			TotalSellingPrice:    line.selling,
			TotalCostPrice:       line.cost,
			TotalProfit:          line.profit,
			TotalExpenditure:     expenditure,
			ActualProfit:         line.profit.Sub(expenditure).Round(2),
		})
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	span.SetAttributes(attribute.Int("report.rows", len(rows)))
	return append(rows, e.monthlyAggregate(rows, lastExpenditure, month, year)), nil
}

// inventoryFor picks the stock row that prices a product for the period: the
// latest one on or before the period start, else the earliest inside it.
func (e *Engine) inventoryFor(ctx context.Context, productID int64, from time.Time, to time.Time) (*domain.Inventory, error) {
	inv, err := e.source.LatestInventoryOnOrBefore(ctx, productID, from)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return inv, err
	}
	return e.source.EarliestInventoryBetween(ctx, productID, from, to)
}

// monthlyAggregate sums the product rows. Under the legacy policy the actual
// profit subtracts only lastExpenditure, which is what historical reports show.
func (e *Engine) monthlyAggregate(rows []domain.MonthlyProfit, lastExpenditure decimal.Decimal, month int, year int) domain.MonthlyProfit {
	total := domain.MonthlyProfit{
		ProductName:          AggregateName,
		Month:                month,
		Year:                 year,
		CostPricePerPiece:    decimal.Zero,
		SellingPricePerPiece: decimal.Zero,
		TotalSellingPrice:    decimal.Zero,
		TotalCostPrice:       decimal.Zero,
		TotalProfit:          decimal.Zero,
		TotalExpenditure:     decimal.Zero,
	}
	for _, row := range rows {
		total.TotalPieces += row.TotalPieces
		total.PiecesSold += row.PiecesSold
		total.CostPricePerPiece = total.CostPricePerPiece.Add(row.CostPricePerPiece)
		total.SellingPricePerPiece = total.SellingPricePerPiece.Add(row.SellingPricePerPiece)
		total.TotalSellingPrice = total.TotalSellingPrice.Add(row.TotalSellingPrice)
		total.TotalCostPrice = total.TotalCostPrice.Add(row.TotalCostPrice)
		total.TotalProfit = total.TotalProfit.Add(row.TotalProfit)
		total.TotalExpenditure = total.TotalExpenditure.Add(row.TotalExpenditure)
	}

	switch e.policy {
	case AggregateTotal:
		total.ActualProfit = total.TotalProfit.Sub(total.TotalExpenditure).Round(2)
	default:
		total.ActualProfit = total.TotalProfit.Sub(lastExpenditure).Round(2)
	}
	return total
}
