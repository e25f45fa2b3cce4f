package report

import (
	"github.com/shopspring/decimal"

	"canteen/backend/internal/domain"
)

// Table is an ordered grid. Cells are string, int64 or decimal.Decimal.
type Table struct {
	Columns []string
	Rows    [][]any
}

var dailyColumns = []string{
	"product_name",
	"date",
	"total_pieces",
	"pieces_sold",
	"cost_price_per_piece",
	"selling_price_per_piece",
	"total_selling_price",
	"total_cost_price",
	"profit",
}

var monthlyColumns = []string{
	"product_name",
	"month",
	"year",
	"total_pieces",
	"pieces_sold",
	"cost_price_per_piece",
	"selling_price_per_piece",
	"total_selling_price",
	"total_cost_price",
	"total_profit",
	"total_expenditure",
	"actual_profit",
}

func DailyTable(records []domain.DailyProfit) Table {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.ProductName,
			r.Date,
			r.TotalPieces,
			r.PiecesSold,
			r.CostPricePerPiece,
			r.SellingPricePerPiece,
			r.TotalSellingPrice,
			r.TotalCostPrice,
			r.Profit,
		})
	}
	return Table{Columns: dailyColumns, Rows: rows}
}

func MonthlyTable(records []domain.MonthlyProfit) Table {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.ProductName,
			int64(r.Month),
			int64(r.Year),
			r.TotalPieces,
			r.PiecesSold,
			r.CostPricePerPiece,
			r.SellingPricePerPiece,
			r.TotalSellingPrice,
			r.TotalCostPrice,
			r.TotalProfit,
			r.TotalExpenditure,
			r.ActualProfit,
		})
	}
	return Table{Columns: monthlyColumns, Rows: rows}
}

func isMoney(v any) (decimal.Decimal, bool) {
	d, ok := v.(decimal.Decimal)
	return d, ok
}
