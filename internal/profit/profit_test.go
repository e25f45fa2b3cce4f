package profit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"canteen/backend/internal/domain"
	"canteen/backend/internal/store/memory"
)

func dec(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedProduct(t *testing.T, s *memory.Store, name string) domain.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), domain.Product{Name: name})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return *p
}

func seedInventory(t *testing.T, s *memory.Store, productID int64, date time.Time, pieces int64, cost, selling string) {
	t.Helper()
	_, err := s.CreateInventory(context.Background(), domain.Inventory{
		ProductID:            productID,
		Date:                 date,
		TotalPieces:          pieces,
		CostPricePerPiece:    dec(cost),
		SellingPricePerPiece: dec(selling),
	})
	if err != nil {
		t.Fatalf("create inventory: %v", err)
	}
}

func TestDailyNoInventoryIsNoData(t *testing.T) {
	engine := NewEngine(memory.New(), AggregateLegacy)
	_, err := engine.Daily(context.Background(), day(2024, 1, 5))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestDailyWithoutSalesIsAllZero(t *testing.T) {
	s := memory.New()
	d := day(2024, 1, 5)
	for _, name := range []string{"Tea", "Samosa", "Soda"} {
		p := seedProduct(t, s, name)
		seedInventory(t, s, p.ID, d, 50, "3.00", "8.00")
	}

	rows, err := NewEngine(s, AggregateLegacy).Daily(context.Background(), d)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 3 rows plus aggregate, got %d", len(rows))
	}
	for _, row := range rows {
		if row.PiecesSold != 0 || !row.TotalSellingPrice.IsZero() || !row.TotalCostPrice.IsZero() || !row.Profit.IsZero() {
			t.Fatalf("expected zero figures, got %+v", row)
		}
	}
}

func TestDailyExampleFigures(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	d := day(2024, 1, 5)
	p := seedProduct(t, s, "Samosa")
	seedInventory(t, s, p.ID, d, 100, "2.00", "5.00")
	if _, err := s.AddSales(ctx, d, []domain.SalesEntry{{ProductID: p.ID, PiecesSold: 10}}); err != nil {
		t.Fatalf("add sales: %v", err)
	}

	rows, err := NewEngine(s, AggregateLegacy).Daily(ctx, d)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	row := rows[0]
	if row.ProductName != "Samosa" || row.Date != "05/01/2024" {
		t.Fatalf("unexpected row identity: %+v", row)
	}
	if !row.TotalSellingPrice.Equal(dec("50.00")) || !row.TotalCostPrice.Equal(dec("20.00")) || !row.Profit.Equal(dec("30.00")) {
		t.Fatalf("unexpected figures: selling=%s cost=%s profit=%s", row.TotalSellingPrice, row.TotalCostPrice, row.Profit)
	}

	aggregate := rows[len(rows)-1]
	if aggregate.ProductName != AggregateName || aggregate.TotalPieces != 100 || aggregate.PiecesSold != 10 {
		t.Fatalf("unexpected aggregate: %+v", aggregate)
	}
}

func TestDailyAggregateIsExactSum(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	d := day(2024, 2, 29)
	prices := [][2]string{{"0.10", "0.35"}, {"12.45", "19.99"}, {"7.33", "9.01"}}
	for i, pr := range prices {
		p := seedProduct(t, s, []string{"A", "B", "C"}[i])
		seedInventory(t, s, p.ID, d, 1000, pr[0], pr[1])
		if _, err := s.AddSales(ctx, d, []domain.SalesEntry{{ProductID: p.ID, PiecesSold: int64(7 * (i + 3))}}); err != nil {
			t.Fatalf("add sales: %v", err)
		}
	}

	rows, err := NewEngine(s, AggregateLegacy).Daily(ctx, d)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	sum := decimal.Zero
	sellingPerPiece := decimal.Zero
	for _, row := range rows[:len(rows)-1] {
		sum = sum.Add(row.Profit)
		sellingPerPiece = sellingPerPiece.Add(row.SellingPricePerPiece)
	}
	aggregate := rows[len(rows)-1]
	if !aggregate.Profit.Equal(sum) {
		t.Fatalf("aggregate profit %s != sum %s", aggregate.Profit, sum)
	}
	if !aggregate.SellingPricePerPiece.Equal(sellingPerPiece) {
		t.Fatalf("aggregate price per piece %s != sum %s", aggregate.SellingPricePerPiece, sellingPerPiece)
	}
}

func TestMonthlyActualProfit(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	p := seedProduct(t, s, "Tea")
	seedInventory(t, s, p.ID, day(2024, 6, 1), 100, "2.00", "5.00")
	_, _ = s.AddSales(ctx, day(2024, 6, 10), []domain.SalesEntry{{ProductID: p.ID, PiecesSold: 10}})
	_, _ = s.CreateExpenditure(ctx, domain.Expenditure{ProductID: p.ID, Date: day(2024, 6, 12), Type: "gas", AmountSpent: dec("15.00")})

	rows, err := NewEngine(s, AggregateLegacy).Monthly(ctx, 6, 2024)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected product row plus aggregate, got %d", len(rows))
	}
	if !rows[0].ActualProfit.Equal(dec("15.00")) {
		t.Fatalf("expected actual profit 15.00, got %s", rows[0].ActualProfit)
	}
	if !rows[0].TotalProfit.Equal(dec("30.00")) || !rows[0].TotalExpenditure.Equal(dec("15.00")) {
		t.Fatalf("unexpected totals: %+v", rows[0])
	}
}

func TestMonthlySkipsIdleProducts(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	active := seedProduct(t, s, "Tea")
	idle := seedProduct(t, s, "Idle")
	noStock := seedProduct(t, s, "NoStock")
	seedInventory(t, s, active.ID, day(2024, 5, 20), 100, "2.00", "5.00")
	seedInventory(t, s, idle.ID, day(2024, 5, 20), 100, "2.00", "5.00")
	_, _ = s.AddSales(ctx, day(2024, 6, 3), []domain.SalesEntry{
		{ProductID: active.ID, PiecesSold: 4},
		{ProductID: noStock.ID, PiecesSold: 9},
	})

	rows, err := NewEngine(s, AggregateLegacy).Monthly(ctx, 6, 2024)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	for _, row := range rows {
		if row.ProductName == "Idle" || row.ProductName == "NoStock" {
			t.Fatalf("expected %s to be skipped", row.ProductName)
		}
	}
	if len(rows) != 2 {
		t.Fatalf("expected one product row plus aggregate, got %d", len(rows))
	}
}

func TestMonthlyNoActivityIsNoData(t *testing.T) {
	s := memory.New()
	p := seedProduct(t, s, "Tea")
	seedInventory(t, s, p.ID, day(2024, 6, 1), 10, "1.00", "2.00")

	_, err := NewEngine(s, AggregateLegacy).Monthly(context.Background(), 7, 2024)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestMonthlyInventoryPolicy(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	before := seedProduct(t, s, "Before")
	inside := seedProduct(t, s, "Inside")

	seedInventory(t, s, before.ID, day(2024, 5, 1), 10, "1.00", "2.00")
	seedInventory(t, s, before.ID, day(2024, 5, 31), 10, "3.00", "6.00")
	seedInventory(t, s, before.ID, day(2024, 6, 15), 10, "9.00", "9.50")
	seedInventory(t, s, inside.ID, day(2024, 6, 20), 10, "4.00", "7.00")
	seedInventory(t, s, inside.ID, day(2024, 6, 10), 10, "5.00", "8.00")
	_, _ = s.AddSales(ctx, day(2024, 6, 21), []domain.SalesEntry{
		{ProductID: before.ID, PiecesSold: 1},
		{ProductID: inside.ID, PiecesSold: 1},
	})

	rows, err := NewEngine(s, AggregateLegacy).Monthly(ctx, 6, 2024)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if !rows[0].CostPricePerPiece.Equal(dec("3.00")) {
		t.Fatalf("expected latest-before price 3.00, got %s", rows[0].CostPricePerPiece)
	}
	if !rows[1].CostPricePerPiece.Equal(dec("5.00")) {
		t.Fatalf("expected earliest-inside price 5.00, got %s", rows[1].CostPricePerPiece)
	}
}

func TestMonthlyAggregatePolicies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a := seedProduct(t, s, "A")
	b := seedProduct(t, s, "B")
	seedInventory(t, s, a.ID, day(2024, 6, 1), 100, "2.00", "5.00")
	seedInventory(t, s, b.ID, day(2024, 6, 1), 100, "1.00", "3.00")
	_, _ = s.AddSales(ctx, day(2024, 6, 2), []domain.SalesEntry{
		{ProductID: a.ID, PiecesSold: 10},
		{ProductID: b.ID, PiecesSold: 10},
	})
	_, _ = s.CreateExpenditure(ctx, domain.Expenditure{ProductID: a.ID, Date: day(2024, 6, 3), Type: "gas", AmountSpent: dec("7.00")})
	_, _ = s.CreateExpenditure(ctx, domain.Expenditure{ProductID: b.ID, Date: day(2024, 6, 3), Type: "ice", AmountSpent: dec("2.50")})

	legacy, err := NewEngine(s, AggregateLegacy).Monthly(ctx, 6, 2024)
	if err != nil {
		t.Fatalf("monthly legacy: %v", err)
	}
	// total_profit 30 + 20 = 50; legacy subtracts B's 2.50 only.
	if got := legacy[len(legacy)-1].ActualProfit; !got.Equal(dec("47.50")) {
		t.Fatalf("legacy aggregate: expected 47.50, got %s", got)
	}

	total, err := NewEngine(s, AggregateTotal).Monthly(ctx, 6, 2024)
	if err != nil {
		t.Fatalf("monthly total: %v", err)
	}
	if got := total[len(total)-1].ActualProfit; !got.Equal(dec("40.50")) {
		t.Fatalf("total aggregate: expected 40.50, got %s", got)
	}
	if got := total[len(total)-1].TotalExpenditure; !got.Equal(dec("9.50")) {
		t.Fatalf("expected summed expenditure 9.50, got %s", got)
	}
}

func TestMonthlyLegacyAggregateUsesLastStockedProduct(t *testing.T) {
	ctx := context.Background()

	// A sells 10 at 5.00/2.00 with 7.00 spent: profit 30, actual 23.
	seed := func(t *testing.T) *memory.Store {
		s := memory.New()
		a := seedProduct(t, s, "A")
		seedInventory(t, s, a.ID, day(2024, 6, 1), 100, "2.00", "5.00")
		_, _ = s.AddSales(ctx, day(2024, 6, 2), []domain.SalesEntry{{ProductID: a.ID, PiecesSold: 10}})
		_, _ = s.CreateExpenditure(ctx, domain.Expenditure{ProductID: a.ID, Date: day(2024, 6, 3), Type: "gas", AmountSpent: dec("7.00")})
		return s
	}

	cases := []struct {
		name  string
		extra func(t *testing.T, s *memory.Store)
		want  string
	}{
		{
			name: "idle stocked product last",
			extra: func(t *testing.T, s *memory.Store) {
				b := seedProduct(t, s, "B")
				seedInventory(t, s, b.ID, day(2024, 6, 1), 50, "1.00", "3.00")
			},
			want: "30.00",
		},
		{
			name: "unstocked product last",
			extra: func(t *testing.T, s *memory.Store) {
				c := seedProduct(t, s, "C")
				_, _ = s.AddSales(ctx, day(2024, 6, 4), []domain.SalesEntry{{ProductID: c.ID, PiecesSold: 3}})
			},
			want: "23.00",
		},
		{
			name: "idle then unstocked",
			extra: func(t *testing.T, s *memory.Store) {
				b := seedProduct(t, s, "B")
				seedInventory(t, s, b.ID, day(2024, 6, 1), 50, "1.00", "3.00")
				seedProduct(t, s, "C")
			},
			want: "30.00",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := seed(t)
			tc.extra(t, s)

			rows, err := NewEngine(s, AggregateLegacy).Monthly(ctx, 6, 2024)
			if err != nil {
				t.Fatalf("monthly: %v", err)
			}
			if len(rows) != 2 {
				t.Fatalf("expected one product row plus aggregate, got %d", len(rows))
			}
			if got := rows[1].ActualProfit; !got.Equal(dec(tc.want)) {
				t.Fatalf("legacy aggregate: expected %s, got %s", tc.want, got)
			}
			if got := rows[1].TotalExpenditure; !got.Equal(dec("7.00")) {
				t.Fatalf("expected summed expenditure 7.00, got %s", got)
			}

			total, err := NewEngine(s, AggregateTotal).Monthly(ctx, 6, 2024)
			if err != nil {
				t.Fatalf("monthly total: %v", err)
			}
			if got := total[1].ActualProfit; !got.Equal(dec("23.00")) {
				t.Fatalf("total aggregate: expected 23.00, got %s", got)
			}
		})
	}
}

func TestParseAggregatePolicy(t *testing.T) {
	for raw, want := range map[string]AggregatePolicy{"": AggregateLegacy, "LEGACY": AggregateLegacy, "total": AggregateTotal} {
		got, err := ParseAggregatePolicy(raw)
		if err != nil || got != want {
			t.Fatalf("%q: expected %s, got %s (%v)", raw, want, got, err)
		}
	}
	if _, err := ParseAggregatePolicy("average"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
