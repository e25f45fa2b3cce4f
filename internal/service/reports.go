package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"canteen/backend/internal/blob"
	"canteen/backend/internal/domain"
	"canteen/backend/internal/logger"
	"canteen/backend/internal/profit"
	"canteen/backend/internal/report"
	"canteen/backend/internal/store"
)

const (
	DailyReportFolder   = "daily_reports"
	MonthlyReportFolder = "monthly_reports"
)

var (
	ErrUpload   = errors.New("report upload failed")
	ErrDownload = errors.New("failed to download report")
)

// presignSafetyMargin keeps cached links from being handed out right before
// they expire.
const presignSafetyMargin = time.Minute

var tracer = otel.Tracer("canteen/backend/internal/service")

func DailyReportName(day string) string {
	return fmt.Sprintf("daily_report_%s.xlsx", day)
}

func MonthlyReportName(month int, year int) string {
	return fmt.Sprintf("monthly_report_%d_%d.xlsx", month, year)
}

func (s *Service) DailyProfit(ctx context.Context, date string) (domain.DailyProfitResponse, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return domain.DailyProfitResponse{}, err
	}
	dateLabel := day.Format(domain.DateLayout)

	rows, err := s.engine.Daily(ctx, day)
	if errors.Is(err, profit.ErrNoData) {
		return domain.DailyProfitResponse{
			Date:    dateLabel,
			Rows:    []domain.DailyProfit{},
			Message: "no inventory recorded for " + dateLabel,
		}, nil
	}
	if err != nil {
		return domain.DailyProfitResponse{}, err
	}
	return domain.DailyProfitResponse{Date: dateLabel, Rows: rows}, nil
}

func (s *Service) MonthlyProfit(ctx context.Context, month int, year int) (domain.MonthlyProfitResponse, error) {
	month, year, err := s.normalizePeriod(month, year)
	if err != nil {
		return domain.MonthlyProfitResponse{}, err
	}

	rows, err := s.engine.Monthly(ctx, month, year)
	if errors.Is(err, profit.ErrNoData) {
		return domain.MonthlyProfitResponse{
			Month:   month,
			Year:    year,
			Rows:    []domain.MonthlyProfit{},
			Message: fmt.Sprintf("no sales or expenditure recorded for %d/%d", month, year),
		}, nil
	}
	if err != nil {
		return domain.MonthlyProfitResponse{}, err
	}
	return domain.MonthlyProfitResponse{Month: month, Year: year, Rows: rows}, nil
}

func (s *Service) ExportDailyReport(ctx context.Context, req domain.DailyExportRequest) (domain.ExportResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.ExportResponse{}, err
	}
	day, err := s.parseDay(req.Date)
	if err != nil {
		return domain.ExportResponse{}, err
	}
	dateLabel := day.Format(domain.DateLayout)

	return s.export(ctx, "daily", DailyReportFolder, DailyReportName(dateLabel), func(ctx context.Context) (report.Table, error) {
		rows, err := s.engine.Daily(ctx, day)
		if err != nil {
			return report.Table{}, err
		}
		return report.DailyTable(rows), nil
	}, "no inventory recorded for "+dateLabel)
}

func (s *Service) ExportMonthlyReport(ctx context.Context, req domain.MonthlyExportRequest) (domain.ExportResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.ExportResponse{}, err
	}
	month, year, err := s.normalizePeriod(req.Month, req.Year)
	if err != nil {
		return domain.ExportResponse{}, err
	}

	return s.export(ctx, "monthly", MonthlyReportFolder, MonthlyReportName(month, year), func(ctx context.Context) (report.Table, error) {
		rows, err := s.engine.Monthly(ctx, month, year)
		if err != nil {
			return report.Table{}, err
		}
		return report.MonthlyTable(rows), nil
	}, fmt.Sprintf("no sales or expenditure recorded for %d/%d", month, year))
}

// export aggregates the period, renders it, overwrites the stored object and
// returns a fresh signed link. A previously uploaded file is never reused here
// because sales for the period may have changed since.
func (s *Service) export(
	ctx context.Context,
	kind string,
	folder string,
	name string,
	build func(context.Context) (report.Table, error),
	noDataMessage string,
) (domain.ExportResponse, error) {
	key := blob.Key(folder, name)
	ctx, span := tracer.Start(ctx, "service.ExportReport")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.kind", kind),
		attribute.String("report.key", key),
	)

	table, err := build(ctx)
	if errors.Is(err, profit.ErrNoData) {
		return domain.ExportResponse{Filename: name, Message: noDataMessage}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return domain.ExportResponse{}, err
	}

	body, err := report.XLSX(table)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return domain.ExportResponse{}, err
	}

	if err := s.blobs.Upload(ctx, folder, name, body, report.ContentType); err != nil {
		return s.uploadFailure(ctx, span, kind, key, err)
	}
	if err := s.urls.Delete(ctx, key); err != nil {
		logger.Warn(ctx).Err(err).Str("key", key).Msg("failed to evict cached report url")
	}
	s.logAudit(ctx, "report_export", kind+"_report", key, fmt.Sprintf("bytes=%d", len(body)))

	url, err := s.presign(ctx, key)
	if err != nil {
		return s.uploadFailure(ctx, span, kind, key, err)
	}

	s.metrics.ReportExported(kind)
	logger.Info(ctx).Str("key", key).Int("bytes", len(body)).Msg("report exported")
	return domain.ExportResponse{
		Key:      key,
		Filename: name,
		URL:      url,
	}, nil
}

func (s *Service) uploadFailure(ctx context.Context, span trace.Span, kind string, key string, err error) (domain.ExportResponse, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, ErrUpload.Error())
	s.metrics.UploadFailed(kind)
	logger.Error(ctx).Err(err).Str("key", key).Msg("report upload failed")
	return domain.ExportResponse{}, fmt.Errorf("%w: %v", ErrUpload, err)
}

// presign returns a cached link for key or signs a new one. Cached entries
// expire a minute before the link itself.
func (s *Service) presign(ctx context.Context, key string) (string, error) {
	if cached, ok, err := s.urls.Get(ctx, key); err != nil {
		logger.Warn(ctx).Err(err).Str("key", key).Msg("report url cache read failed")
	} else if ok {
		return cached, nil
	}

	url, err := s.blobs.Presign(ctx, key, s.presignTTL)
	if err != nil {
		return "", err
	}
	if ttl := s.presignTTL - presignSafetyMargin; ttl > 0 {
		if err := s.urls.Set(ctx, key, url, ttl); err != nil {
			logger.Warn(ctx).Err(err).Str("key", key).Msg("report url cache write failed")
		}
	}
	return url, nil
}

// Download is an open report stream fetched through a signed link.
type Download struct {
	Body          io.ReadCloser
	Filename      string
	ContentType   string
	ContentLength int64
}

// OpenReport fetches a previously exported report by key. Only keys inside the
// report folders are accepted.
func (s *Service) OpenReport(ctx context.Context, key string) (*Download, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)
	if err := blob.ValidateKey(key); err != nil {
		return nil, store.ErrInvalidInput
	}
	if !strings.HasPrefix(key, DailyReportFolder+"/") && !strings.HasPrefix(key, MonthlyReportFolder+"/") {
		return nil, store.ErrInvalidInput
	}

	exists, err := s.blobs.Exists(ctx, key)
	if err != nil {
		logger.Error(ctx).Err(err).Str("key", key).Msg("report lookup failed")
		return nil, ErrDownload
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	url, err := s.presign(ctx, key)
	if err != nil {
		logger.Error(ctx).Err(err).Str("key", key).Msg("report presign failed")
		return nil, ErrDownload
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ErrDownload
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Error(ctx).Err(err).Str("key", key).Msg("report download failed")
		return nil, ErrDownload
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		logger.Error(ctx).Int("status", resp.StatusCode).Str("key", key).Msg("report download failed")
		return nil, ErrDownload
	}

	return &Download{
		Body:          resp.Body,
		Filename:      path.Base(key),
		ContentType:   report.ContentType,
		ContentLength: resp.ContentLength,
	}, nil
}
