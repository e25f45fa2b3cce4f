package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"canteen/backend/internal/domain"
	"canteen/backend/internal/store"
	"canteen/backend/internal/xid"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

type Store struct {
	db      *sql.DB
	dialect dialect
}

// New opens databaseURL and creates the schema. postgres:// and
// postgresql:// URLs use pgx; sqlite://<path>, file: and :memory: use the
// pure-Go SQLite driver.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	driver, dsn, d, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if d == dialectSQLite {
		// One connection so :memory: databases are shared and writes serialize.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxIdleConns(8)
		db.SetMaxOpenConns(30)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, dialect: d}
	if d == dialectSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func parseDatabaseURL(databaseURL string) (string, string, dialect, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "pgx", databaseURL, dialectPostgres, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return "sqlite", strings.TrimPrefix(databaseURL, "sqlite://"), dialectSQLite, nil
	case strings.HasPrefix(databaseURL, "file:"), databaseURL == ":memory:":
		return "sqlite", databaseURL, dialectSQLite, nil
	default:
		return "", "", 0, fmt.Errorf("unsupported database url scheme: %q", databaseURL)
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// q rewrites ? placeholders to $n for postgres.
func (s *Store) q(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *Store) dateArg(t time.Time) any {
	if s.dialect == dialectSQLite {
		return domain.Day(t).Format(domain.DateLayout)
	}
	return domain.Day(t)
}

func (s *Store) timeArg(t time.Time) any {
	if s.dialect == dialectSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func (s *Store) txOptions() *sql.TxOptions {
	if s.dialect == dialectSQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, (*dbTime)(&p.CreatedAt)); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, name, created_at
		FROM products
		WHERE id = ?
	`), id).Scan(&p.ID, &p.Name, (*dbTime)(&p.CreatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO products (name, created_at)
		VALUES (?, ?)
		RETURNING id
	`), product.Name, s.timeArg(product.CreatedAt)).Scan(&product.ID)
	if err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

// DeleteProduct removes the product and every inventory, sales and
// expenditure row that references it.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, s.txOptions())
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"inventory", "sales", "expenditures"} {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM `+table+` WHERE product_id = ?`), id); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) productName(ctx context.Context, q queryer, id int64) (string, error) {
	var name string
	err := q.QueryRowContext(ctx, s.q(`SELECT name FROM products WHERE id = ?`), id).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return name, nil
}

func (s *Store) CreateInventory(ctx context.Context, inv domain.Inventory) (*domain.Inventory, error) {
	if inv.TotalPieces < 0 || inv.CostPricePerPiece.IsNegative() || inv.SellingPricePerPiece.IsNegative() {
		return nil, store.ErrInvalidInput
	}

	name, err := s.productName(ctx, s.db, inv.ProductID)
	if err != nil {
		return nil, err
	}
	inv.ProductName = name
	inv.Date = domain.Day(inv.Date)

	err = s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO inventory (product_id, date, total_pieces, cost_price_per_piece, selling_price_per_piece)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`), inv.ProductID, s.dateArg(inv.Date), inv.TotalPieces, moneyArg(inv.CostPricePerPiece), moneyArg(inv.SellingPricePerPiece)).Scan(&inv.ID)
	if err != nil {
		return nil, err
	}

	created := inv
	return &created, nil
}

const inventoryColumns = `i.id, i.product_id, p.name, i.date, i.total_pieces, i.cost_price_per_piece, i.selling_price_per_piece`

func scanInventory(row interface{ Scan(...any) error }) (domain.Inventory, error) {
	var inv domain.Inventory
	err := row.Scan(
		&inv.ID, &inv.ProductID, &inv.ProductName, (*dbTime)(&inv.Date),
		&inv.TotalPieces, &inv.CostPricePerPiece, &inv.SellingPricePerPiece,
	)
	return inv, err
}

func (s *Store) ListInventoryByDate(ctx context.Context, day time.Time) ([]domain.Inventory, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+inventoryColumns+`
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE i.date = ?
		ORDER BY i.id
	`), s.dateArg(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Inventory, 0, 16)
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) LatestInventoryOnOrBefore(ctx context.Context, productID int64, day time.Time) (*domain.Inventory, error) {
	return s.oneInventory(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE i.product_id = ? AND i.date <= ?
		ORDER BY i.date DESC, i.id DESC
		LIMIT 1
	`, productID, s.dateArg(day))
}

func (s *Store) EarliestInventoryBetween(ctx context.Context, productID int64, from time.Time, to time.Time) (*domain.Inventory, error) {
	return s.oneInventory(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE i.product_id = ? AND i.date >= ? AND i.date < ?
		ORDER BY i.date ASC, i.id ASC
		LIMIT 1
	`, productID, s.dateArg(from), s.dateArg(to))
}

func (s *Store) oneInventory(ctx context.Context, query string, args ...any) (*domain.Inventory, error) {
	inv, err := scanInventory(s.db.QueryRowContext(ctx, s.q(query), args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// AddSales upserts each entry, adding to an existing (product, date) row.
// Either every entry is applied or none is.
func (s *Store) AddSales(ctx context.Context, day time.Time, entries []domain.SalesEntry) ([]domain.Sales, error) {
	day = domain.Day(day)
	for _, entry := range entries {
		if entry.PiecesSold < 0 || entry.PiecesSold > store.MaxPiecesSold {
			return nil, store.ErrInvalidInput
		}
	}
	if len(entries) == 0 {
		return []domain.Sales{}, nil
	}

	tx, err := s.db.BeginTx(ctx, s.txOptions())
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result := make([]domain.Sales, 0, len(entries))
	for _, entry := range entries {
		name, err := s.productName(ctx, tx, entry.ProductID)
		if err != nil {
			return nil, err
		}

		row := domain.Sales{ProductID: entry.ProductID, ProductName: name, Date: day}
		err = tx.QueryRowContext(ctx, s.q(`
			INSERT INTO sales (product_id, date, pieces_sold)
			VALUES (?, ?, ?)
			ON CONFLICT (product_id, date)
			DO UPDATE SET pieces_sold = sales.pieces_sold + excluded.pieces_sold
			WHERE sales.pieces_sold + excluded.pieces_sold <= ?
			RETURNING id, pieces_sold
		`), entry.ProductID, s.dateArg(day), entry.PiecesSold, int64(store.MaxPiecesSold)).Scan(&row.ID, &row.PiecesSold)
		if errors.Is(err, sql.ErrNoRows) {
			// the conflict update was skipped: the row would exceed the cap
			return nil, store.ErrInvalidInput
		}
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListSalesByDate(ctx context.Context, day time.Time) ([]domain.Sales, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT s.id, s.product_id, p.name, s.date, s.pieces_sold
		FROM sales s
		JOIN products p ON p.id = s.product_id
		WHERE s.date = ?
		ORDER BY s.id
	`), s.dateArg(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Sales, 0, 16)
	for rows.Next() {
		var row domain.Sales
		if err := rows.Scan(&row.ID, &row.ProductID, &row.ProductName, (*dbTime)(&row.Date), &row.PiecesSold); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SumPiecesSold(ctx context.Context, productID int64, from time.Time, to time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COALESCE(SUM(pieces_sold), 0)
		FROM sales
		WHERE product_id = ? AND date >= ? AND date < ?
	`), productID, s.dateArg(from), s.dateArg(to)).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) CreateExpenditure(ctx context.Context, exp domain.Expenditure) (*domain.Expenditure, error) {
	exp.Type = strings.TrimSpace(exp.Type)
	if exp.Type == "" || exp.AmountSpent.IsNegative() {
		return nil, store.ErrInvalidInput
	}

	name, err := s.productName(ctx, s.db, exp.ProductID)
	if err != nil {
		return nil, err
	}
	exp.ProductName = name
	exp.Date = domain.Day(exp.Date)

	err = s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO expenditures (product_id, date, type, amount_spent)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), exp.ProductID, s.dateArg(exp.Date), exp.Type, moneyArg(exp.AmountSpent)).Scan(&exp.ID)
	if err != nil {
		return nil, err
	}

	created := exp
	return &created, nil
}

func (s *Store) ListExpenditures(ctx context.Context, from time.Time, to time.Time) ([]domain.Expenditure, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT e.id, e.product_id, p.name, e.date, e.type, e.amount_spent
		FROM expenditures e
		JOIN products p ON p.id = e.product_id
		WHERE e.date >= ? AND e.date < ?
		ORDER BY e.date, e.id
	`), s.dateArg(from), s.dateArg(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Expenditure, 0, 16)
	for rows.Next() {
		var exp domain.Expenditure
		if err := rows.Scan(&exp.ID, &exp.ProductID, &exp.ProductName, (*dbTime)(&exp.Date), &exp.Type, &exp.AmountSpent); err != nil {
			return nil, err
		}
		items = append(items, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// SumExpenditure adds the amounts in Go so both dialects keep exact decimals.
func (s *Store) SumExpenditure(ctx context.Context, productID int64, from time.Time, to time.Time) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT amount_spent
		FROM expenditures
		WHERE product_id = ? AND date >= ? AND date < ?
	`), productID, s.dateArg(from), s.dateArg(to))
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, s.timeArg(entry.CreatedAt))
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?
	`), s.timeArg(from), s.timeArg(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, (*dbTime)(&entry.CreatedAt)); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), user.Username, user.Password, user.Role, user.Active, s.timeArg(user.CreatedAt), s.timeArg(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, (*dbTime)(&user.CreatedAt)); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE app_users
		SET password = ?, updated_at = ?
		WHERE username = ?
	`), password, s.timeArg(time.Now()), username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func moneyArg(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// dbTime scans DATE/TIMESTAMPTZ values from pgx and TEXT values from SQLite.
type dbTime time.Time

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = dbTime(v.UTC())
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		*t = dbTime(time.Time{})
		return nil
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into time", src)
	}
}

func (t *dbTime) parse(v string) error {
	for _, layout := range []string{sqliteTimeLayout, domain.DateLayout, time.RFC3339Nano} {
		if parsed, err := time.Parse(layout, v); err == nil {
			*t = dbTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("sqlstore: unrecognized time value %q", v)
}
