package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name string `json:"name"`
}

type Inventory struct {
	ID                   int64           `json:"id"`
	ProductID            int64           `json:"product_id"`
	ProductName          string          `json:"product_name"`
	Date                 time.Time       `json:"date"`
	TotalPieces          int64           `json:"total_pieces"`
	CostPricePerPiece    decimal.Decimal `json:"cost_price_per_piece"`
	SellingPricePerPiece decimal.Decimal `json:"selling_price_per_piece"`
}

type InventoryCreateRequest struct {
	ProductID            int64           `json:"product_id"`
	Date                 string          `json:"date"`
	TotalPieces          int64           `json:"total_pieces"`
	CostPricePerPiece    decimal.Decimal `json:"cost_price_per_piece"`
	SellingPricePerPiece decimal.Decimal `json:"selling_price_per_piece"`
}

type Sales struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Date        time.Time `json:"date"`
	PiecesSold  int64     `json:"pieces_sold"`
}

// SalesEntry is one (product, pieces) pair of a daily sales submission.
type SalesEntry struct {
	ProductID  int64 `json:"product_id"`
	PiecesSold int64 `json:"pieces_sold"`
}

type SalesRecordRequest struct {
	Date    string       `json:"date"`
	Entries []SalesEntry `json:"entries"`
}

type SalesRecordResponse struct {
	Date  string  `json:"date"`
	Sales []Sales `json:"sales"`
}

type Expenditure struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Date        time.Time       `json:"date"`
	Type        string          `json:"type"`
	AmountSpent decimal.Decimal `json:"amount_spent"`
}

type ExpenditureCreateRequest struct {
	ProductID   int64           `json:"product_id"`
	Date        string          `json:"date"`
	Type        string          `json:"type"`
	AmountSpent decimal.Decimal `json:"amount_spent"`
}

// DailyProfit is one row of the daily profit report. The aggregate row carries
// ProductName "all".
type DailyProfit struct {
	ProductName          string          `json:"product_name"`
	Date                 string          `json:"date"`
	TotalPieces          int64           `json:"total_pieces"`
	PiecesSold           int64           `json:"pieces_sold"`
	CostPricePerPiece    decimal.Decimal `json:"cost_price_per_piece"`
	SellingPricePerPiece decimal.Decimal `json:"selling_price_per_piece"`
	TotalSellingPrice    decimal.Decimal `json:"total_selling_price"`
	TotalCostPrice       decimal.Decimal `json:"total_cost_price"`
	Profit               decimal.Decimal `json:"profit"`
}

// MonthlyProfit is one row of the monthly actual-profit report.
type MonthlyProfit struct {
	ProductName          string          `json:"product_name"`
	Month                int             `json:"month"`
	Year                 int             `json:"year"`
	TotalPieces          int64           `json:"total_pieces"`
	PiecesSold           int64           `json:"pieces_sold"`
	CostPricePerPiece    decimal.Decimal `json:"cost_price_per_piece"`
	SellingPricePerPiece decimal.Decimal `json:"selling_price_per_piece"`
	TotalSellingPrice    decimal.Decimal `json:"total_selling_price"`
	TotalCostPrice       decimal.Decimal `json:"total_cost_price"`
	TotalProfit          decimal.Decimal `json:"total_profit"`
	TotalExpenditure     decimal.Decimal `json:"total_expenditure"`
	ActualProfit         decimal.Decimal `json:"actual_profit"`
}

type DailyProfitResponse struct {
	Date    string        `json:"date"`
	Rows    []DailyProfit `json:"rows"`
	Message string        `json:"message,omitempty"`
}

type MonthlyProfitResponse struct {
	Month   int             `json:"month"`
	Year    int             `json:"year"`
	Rows    []MonthlyProfit `json:"rows"`
	Message string          `json:"message,omitempty"`
}

type DailyExportRequest struct {
	Date string `json:"date"`
}

type MonthlyExportRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// ExportResponse describes an uploaded report. Key and URL are empty when the
// period had no data; Message explains why.
type ExportResponse struct {
	Key      string `json:"key,omitempty"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
	Message  string `json:"message,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthBounds returns [first day of month, first day of next month).
func MonthBounds(month int, year int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
