package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"canteen/backend/internal/blob"
	"canteen/backend/internal/cache"
	"canteen/backend/internal/domain"
	"canteen/backend/internal/logger"
	"canteen/backend/internal/metrics"
	"canteen/backend/internal/profit"
	"canteen/backend/internal/store"
	"canteen/backend/internal/xid"
)

var ErrForbidden = errors.New("admin role required")

var (
	maxPricePerPiece = decimal.NewFromInt(1000)
	maxAmountSpent   = decimal.NewFromInt(1000000)
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// PresignTTL is the lifetime of download links. Defaults to one hour.
	PresignTTL time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

type Service struct {
	repo       store.Repository
	engine     *profit.Engine
	blobs      blob.Store
	urls       cache.URLCache
	presignTTL time.Duration
	httpClient *http.Client
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(repo store.Repository, engine *profit.Engine, blobs blob.Store, urls cache.URLCache, opts Options) *Service {
	if urls == nil {
		urls = cache.NoopURLCache{}
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = time.Hour
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:       repo,
		engine:     engine,
		blobs:      blobs,
		urls:       urls,
		presignTTL: opts.PresignTTL,
		httpClient: opts.HTTPClient,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		return domain.Product{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{Name: name})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", strconv.FormatInt(created.ID, 10), "name="+created.Name)
	return *created, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if id < 1 {
		return store.ErrInvalidInput
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "product_delete", "product", strconv.FormatInt(id, 10), "cascade=inventory,sales,expenditures")
	return nil
}

func (s *Service) CreateInventory(ctx context.Context, req domain.InventoryCreateRequest) (domain.Inventory, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Inventory{}, err
	}

	day, err := s.parseDay(req.Date)
	if err != nil {
		return domain.Inventory{}, err
	}
	if req.ProductID < 1 || req.TotalPieces < 0 {
		return domain.Inventory{}, store.ErrInvalidInput
	}
	if !validMoney(req.CostPricePerPiece, maxPricePerPiece) || !validMoney(req.SellingPricePerPiece, maxPricePerPiece) {
		return domain.Inventory{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateInventory(ctx, domain.Inventory{
		ProductID:            req.ProductID,
		Date:                 day,
		TotalPieces:          req.TotalPieces,
		CostPricePerPiece:    req.CostPricePerPiece,
		SellingPricePerPiece: req.SellingPricePerPiece,
	})
	if err != nil {
		return domain.Inventory{}, err
	}

	s.logAudit(ctx, "inventory_create", "inventory", strconv.FormatInt(created.ID, 10), fmt.Sprintf(
		"product=%d,date=%s,pieces=%d,cost=%s,selling=%s",
		created.ProductID, day.Format(domain.DateLayout), created.TotalPieces,
		created.CostPricePerPiece.StringFixed(2), created.SellingPricePerPiece.StringFixed(2),
	))
	return *created, nil
}

func (s *Service) ListInventory(ctx context.Context, date string) ([]domain.Inventory, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInventoryByDate(ctx, day)
}

func (s *Service) CreateExpenditure(ctx context.Context, req domain.ExpenditureCreateRequest) (domain.Expenditure, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Expenditure{}, err
	}

	day, err := s.parseDay(req.Date)
	if err != nil {
		return domain.Expenditure{}, err
	}
	expType := strings.TrimSpace(req.Type)
	if req.ProductID < 1 || expType == "" || len(expType) > 100 {
		return domain.Expenditure{}, store.ErrInvalidInput
	}
	if !validMoney(req.AmountSpent, maxAmountSpent) {
		return domain.Expenditure{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateExpenditure(ctx, domain.Expenditure{
		ProductID:   req.ProductID,
		Date:        day,
		Type:        expType,
		AmountSpent: req.AmountSpent,
	})
	if err != nil {
		return domain.Expenditure{}, err
	}

	s.logAudit(ctx, "expenditure_create", "expenditure", strconv.FormatInt(created.ID, 10), fmt.Sprintf(
		"product=%d,date=%s,type=%s,amount=%s",
		created.ProductID, day.Format(domain.DateLayout), created.Type, created.AmountSpent.StringFixed(2),
	))
	return *created, nil
}

func (s *Service) ListExpenditures(ctx context.Context, month int, year int) ([]domain.Expenditure, error) {
	month, year, err := s.normalizePeriod(month, year)
	if err != nil {
		return nil, err
	}
	from, to := domain.MonthBounds(month, year)
	return s.repo.ListExpenditures(ctx, from, to)
}

// RecordSales adds each entry's pieces to the (product, date) running total.
// Entries naming the same product are merged before the store sees them.
func (s *Service) RecordSales(ctx context.Context, req domain.SalesRecordRequest) (domain.SalesRecordResponse, error) {
	day, err := s.parseDay(req.Date)
	if err != nil {
		return domain.SalesRecordResponse{}, err
	}
	if len(req.Entries) == 0 {
		return domain.SalesRecordResponse{}, store.ErrInvalidInput
	}

	var pieces int64
	for _, entry := range req.Entries {
		if entry.ProductID < 1 || entry.PiecesSold < 0 || entry.PiecesSold > store.MaxPiecesSold {
			return domain.SalesRecordResponse{}, store.ErrInvalidInput
		}
		pieces += entry.PiecesSold
	}
	entries := mergeSalesEntries(req.Entries)
	for _, entry := range entries {
		if entry.PiecesSold > store.MaxPiecesSold {
			return domain.SalesRecordResponse{}, store.ErrInvalidInput
		}
	}

	rows, err := s.repo.AddSales(ctx, day, entries)
	if err != nil {
		return domain.SalesRecordResponse{}, err
	}
	s.metrics.PiecesRecorded(pieces)

	dateLabel := day.Format(domain.DateLayout)
	s.logAudit(ctx, "sales_record", "sales", dateLabel, fmt.Sprintf("entries=%d,pieces=%d", len(entries), pieces))
	return domain.SalesRecordResponse{Date: dateLabel, Sales: rows}, nil
}

func (s *Service) ListSales(ctx context.Context, date string) ([]domain.Sales, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSalesByDate(ctx, day)
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse(domain.DateLayout, date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		logger.Warn(ctx).Err(err).
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("failed to write audit log")
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// parseDay reads a YYYY-MM-DD date; empty means today (UTC).
func (s *Service) parseDay(date string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return domain.Day(s.now()), nil
	}
	parsed, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return time.Time{}, store.ErrInvalidInput
	}
	return parsed.UTC(), nil
}

// normalizePeriod validates month and defaults a zero year to the current one.
func (s *Service) normalizePeriod(month int, year int) (int, int, error) {
	if year == 0 {
		year = s.now().UTC().Year()
	}
	if month < 1 || month > 12 || year < 1 || year > 9999 {
		return 0, 0, store.ErrInvalidInput
	}
	return month, year, nil
}

func validMoney(d decimal.Decimal, limit decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2)) && d.LessThan(limit)
}

func mergeSalesEntries(entries []domain.SalesEntry) []domain.SalesEntry {
	merged := make([]domain.SalesEntry, 0, len(entries))
	index := make(map[int64]int, len(entries))
	for _, entry := range entries {
		if i, ok := index[entry.ProductID]; ok {
			merged[i].PiecesSold += entry.PiecesSold
			continue
		}
		index[entry.ProductID] = len(merged)
		merged = append(merged, entry)
	}
	return merged
}
