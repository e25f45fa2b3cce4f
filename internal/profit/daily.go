package profit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"canteen/backend/internal/domain"
)

// DisplayDateLayout is the dd/mm/yyyy rendering used in report rows.
const DisplayDateLayout = "02/01/2006"

// Daily returns one record per inventory row dated day, followed by the
// aggregate row.
func (e *Engine) Daily(ctx context.Context, day time.Time) ([]domain.DailyProfit, error) {
	day = domain.Day(day)
	ctx, span := tracer.Start(ctx, "profit.Daily")
	defer span.End()
	span.SetAttributes(attribute.String("report.date", day.Format(domain.DateLayout)))

	inventory, err := e.source.ListInventoryByDate(ctx, day)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list inventory failed")
		return nil, err
	}
	if len(inventory) == 0 {
		return nil, ErrNoData
	}

	sales, err := e.source.ListSalesByDate(ctx, day)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list sales failed")
		return nil, err
	}
	sold := make(map[int64]int64, len(sales))
	for _, row := range sales {
		sold[row.ProductID] += row.PiecesSold
	}

	dateLabel := day.Format(DisplayDateLayout)
	rows := make([]domain.DailyProfit, 0, len(inventory)+1)
	total := domain.DailyProfit{
		ProductName:          AggregateName,
		Date:                 dateLabel,
		CostPricePerPiece:    decimal.Zero,
		SellingPricePerPiece: decimal.Zero,
		TotalSellingPrice:    decimal.Zero,
		TotalCostPrice:       decimal.Zero,
		Profit:               decimal.Zero,
	}

	for _, inv := range inventory {
		pieces := sold[inv.ProductID]
		line := computeLine(pieces, inv)
		row := domain.DailyProfit{
			ProductName:          inv.ProductName,
			Date:                 dateLabel,
			TotalPieces:          inv.TotalPieces,
			PiecesSold:           pieces,
			CostPricePerPiece:    inv.CostPricePerPiece,
			SellingPricePerPiece: inv.SellingPricePerPiece,
			TotalSellingPrice:    line.selling,
			TotalCostPrice:       line.cost,
			Profit:               line.profit,
		}
		rows = append(rows, row)

		total.TotalPieces += row.TotalPieces
		total.PiecesSold += row.PiecesSold
		total.CostPricePerPiece = total.CostPricePerPiece.Add(row.CostPricePerPiece)
		total.SellingPricePerPiece = total.SellingPricePerPiece.Add(row.SellingPricePerPiece)
		total.TotalSellingPrice = total.TotalSellingPrice.Add(row.TotalSellingPrice)
		total.TotalCostPrice = total.TotalCostPrice.Add(row.TotalCostPrice)
		total.Profit = total.Profit.Add(row.Profit)
	}

	span.SetAttributes(attribute.Int("report.rows", len(rows)))
	return append(rows, total), nil
}
