package memory

import (
	"cmp"
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"canteen/backend/internal/domain"
	"canteen/backend/internal/logger"
	"canteen/backend/internal/store"
	"canteen/backend/internal/xid"
)

type salesKey struct {
	productID int64
	day       time.Time
}

type Store struct {
	mu              sync.RWMutex
	nextID          int64
	products        map[int64]domain.Product
	inventory       []domain.Inventory
	sales           map[salesKey]*domain.Sales
	salesOrder      []salesKey
	expenditures    []domain.Expenditure
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD, with
// dev defaults when unset. The SQL store never uses these.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		logger.Logger.Warn().Str("component", "memory-store").Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		if err != nil {
			logger.Logger.Fatal().Err(err).Str("username", u.username).Msg("failed to hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store with the seed users only.
func New() *Store {
	return &Store{
		products:        make(map[int64]domain.Product),
		inventory:       make([]domain.Inventory, 0, 64),
		sales:           make(map[salesKey]*domain.Sales),
		expenditures:    make([]domain.Expenditure, 0, 32),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

// NewSeeded returns a store with a few canteen products stocked today.
func NewSeeded() *Store {
	s := New()
	today := domain.Day(time.Now())
	for _, seed := range []struct {
		name    string
		pieces  int64
		cost    string
		selling string
	}{
		{"Samosa", 120, "4.00", "10.00"},
		{"Tea", 200, "3.00", "8.00"},
		{"Veg Sandwich", 60, "18.00", "35.00"},
		{"Lemon Soda", 80, "9.50", "20.00"},
	} {
		p, _ := s.CreateProduct(context.Background(), domain.Product{Name: seed.name})
		_, _ = s.CreateInventory(context.Background(), domain.Inventory{
			ProductID:            p.ID,
			Date:                 today,
			TotalPieces:          seed.pieces,
			CostPricePerPiece:    decimal.RequireFromString(seed.cost),
			SellingPricePerPiece: decimal.RequireFromString(seed.selling),
		})
	}
	return s
}

func (s *Store) newID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product.ID = s.newID()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)

	s.inventory = slices.DeleteFunc(s.inventory, func(inv domain.Inventory) bool {
		return inv.ProductID == id
	})
	s.expenditures = slices.DeleteFunc(s.expenditures, func(exp domain.Expenditure) bool {
		return exp.ProductID == id
	})
	s.salesOrder = slices.DeleteFunc(s.salesOrder, func(key salesKey) bool {
		if key.productID == id {
			delete(s.sales, key)
			return true
		}
		return false
	})
	return nil
}

func (s *Store) CreateInventory(_ context.Context, inv domain.Inventory) (*domain.Inventory, error) {
	if inv.TotalPieces < 0 || inv.CostPricePerPiece.IsNegative() || inv.SellingPricePerPiece.IsNegative() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[inv.ProductID]
	if !ok {
		return nil, store.ErrNotFound
	}

	inv.ID = s.newID()
	inv.ProductName = product.Name
	inv.Date = domain.Day(inv.Date)
	s.inventory = append(s.inventory, inv)
	created := inv
	return &created, nil
}

func (s *Store) ListInventoryByDate(_ context.Context, day time.Time) ([]domain.Inventory, error) {
	day = domain.Day(day)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.Inventory, 0, 16)
	for _, inv := range s.inventory {
		if inv.Date.Equal(day) {
			rows = append(rows, inv)
		}
	}
	return rows, nil
}

func (s *Store) LatestInventoryOnOrBefore(_ context.Context, productID int64, day time.Time) (*domain.Inventory, error) {
	day = domain.Day(day)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Inventory
	for i := range s.inventory {
		inv := s.inventory[i]
		if inv.ProductID != productID || inv.Date.After(day) {
			continue
		}
		if found == nil || inv.Date.After(found.Date) {
			match := inv
			found = &match
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) EarliestInventoryBetween(_ context.Context, productID int64, from time.Time, to time.Time) (*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Inventory
	for i := range s.inventory {
		inv := s.inventory[i]
		if inv.ProductID != productID || inv.Date.Before(from) || !inv.Date.Before(to) {
			continue
		}
		if found == nil || inv.Date.Before(found.Date) {
			match := inv
			found = &match
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) AddSales(_ context.Context, day time.Time, entries []domain.SalesEntry) ([]domain.Sales, error) {
	day = domain.Day(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	projected := make(map[int64]int64, len(entries))
	for _, entry := range entries {
		if entry.PiecesSold < 0 || entry.PiecesSold > store.MaxPiecesSold {
			return nil, store.ErrInvalidInput
		}
		if _, ok := s.products[entry.ProductID]; !ok {
			return nil, store.ErrNotFound
		}
		total, ok := projected[entry.ProductID]
		if !ok {
			if row, exists := s.sales[salesKey{productID: entry.ProductID, day: day}]; exists {
				total = row.PiecesSold
			}
		}
		total += entry.PiecesSold
		if total > store.MaxPiecesSold {
			return nil, store.ErrInvalidInput
		}
		projected[entry.ProductID] = total
	}

	result := make([]domain.Sales, 0, len(entries))
	for _, entry := range entries {
		key := salesKey{productID: entry.ProductID, day: day}
		row, ok := s.sales[key]
		if !ok {
			row = &domain.Sales{
				ID:          s.newID(),
				ProductID:   entry.ProductID,
				ProductName: s.products[entry.ProductID].Name,
				Date:        day,
			}
			s.sales[key] = row
			s.salesOrder = append(s.salesOrder, key)
		}
		row.PiecesSold += entry.PiecesSold
		result = append(result, *row)
	}
	return result, nil
}

func (s *Store) ListSalesByDate(_ context.Context, day time.Time) ([]domain.Sales, error) {
	day = domain.Day(day)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.Sales, 0, 16)
	for _, key := range s.salesOrder {
		if key.day.Equal(day) {
			rows = append(rows, *s.sales[key])
		}
	}
	return rows, nil
}

func (s *Store) SumPiecesSold(_ context.Context, productID int64, from time.Time, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for key, row := range s.sales {
		if key.productID == productID && !key.day.Before(from) && key.day.Before(to) {
			total += row.PiecesSold
		}
	}
	return total, nil
}

func (s *Store) CreateExpenditure(_ context.Context, exp domain.Expenditure) (*domain.Expenditure, error) {
	exp.Type = strings.TrimSpace(exp.Type)
	if exp.Type == "" || exp.AmountSpent.IsNegative() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[exp.ProductID]
	if !ok {
		return nil, store.ErrNotFound
	}

	exp.ID = s.newID()
	exp.ProductName = product.Name
	exp.Date = domain.Day(exp.Date)
	s.expenditures = append(s.expenditures, exp)
	created := exp
	return &created, nil
}

func (s *Store) ListExpenditures(_ context.Context, from time.Time, to time.Time) ([]domain.Expenditure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.Expenditure, 0, 16)
	for _, exp := range s.expenditures {
		if !exp.Date.Before(from) && exp.Date.Before(to) {
			rows = append(rows, exp)
		}
	}
	return rows, nil
}

func (s *Store) SumExpenditure(_ context.Context, productID int64, from time.Time, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, exp := range s.expenditures {
		if exp.ProductID == productID && !exp.Date.Before(from) && exp.Date.Before(to) {
			total = total.Add(exp.AmountSpent)
		}
	}
	return total, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
