package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"MedScanner/internal/domain"
	"MedScanner/internal/ports"
)

const lastRecordColumn = "J"

// SheetsSink keeps one worksheet per day inside a single spreadsheet.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *slog.Logger

	mu    sync.Mutex
	known map[string]bool
}

var _ ports.Sink = (*SheetsSink)(nil)

// NewSheetsSink builds a sink over the spreadsheet. Client options carry credentials;
// tests pass option.WithHTTPClient and option.WithEndpoint.
func NewSheetsSink(ctx context.Context, spreadsheetID string, log *slog.Logger, opts ...option.ClientOption) (*SheetsSink, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("%w: spreadsheet id is empty", domain.ErrConfig)
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsSink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        log,
		known:         map[string]bool{},
	}, nil
}

// ListPartitions returns worksheet titles inside the window, newest first.
func (s *SheetsSink) ListPartitions(ctx context.Context, lastNDays int, now time.Time) ([]string, error) {
	titles, err := s.titles(ctx)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, day := range windowDays(lastNDays, now) {
		if titles[day] {
			out = append(out, day)
		}
	}
	return out, nil
}

// ReadURLs reads the URL column below the header. A worksheet that does not exist yields nothing.
func (s *SheetsSink) ReadURLs(ctx context.Context, partition string) ([]string, error) {
	column := string(rune('A' + domain.URLColumn))
	rng := fmt.Sprintf("%s!%s2:%s", quoteSheet(partition), column, column)

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		if isMissingRange(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read urls from %s: %w", partition, err)
	}

	urls := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if v := strings.TrimSpace(fmt.Sprint(row[0])); v != "" {
			urls = append(urls, v)
		}
	}
	return urls, nil
}

// Append writes the record to the worksheet of its ingestion day, creating it with a header row first.
func (s *SheetsSink) Append(ctx context.Context, record domain.Record) error {
	day := domain.PartitionFor(record.IngestedAt)
	if err := s.ensureSheet(ctx, day); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSinkWrite, err)
	}

	values := &sheets.ValueRange{Values: [][]any{toCells(record.Row())}}
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, quoteSheet(day)+"!A:"+lastRecordColumn, values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: append to %s: %v", domain.ErrSinkWrite, day, err)
	}
	return nil
}

func (s *SheetsSink) titles(ctx context.Context) (map[string]bool, error) {
	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}

	titles := make(map[string]bool, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			titles[sh.Properties.Title] = true
		}
	}

	s.mu.Lock()
	for t := range titles {
		s.known[t] = true
	}
	s.mu.Unlock()
	return titles, nil
}

func (s *SheetsSink) ensureSheet(ctx context.Context, day string) error {
	s.mu.Lock()
	exists := s.known[day]
	s.mu.Unlock()
	if exists {
		return nil
	}

	titles, err := s.titles(ctx)
	if err != nil {
		return err
	}
	if titles[day] {
		return nil
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: day}},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		if !isAlreadyExists(err) {
			return fmt.Errorf("add worksheet %s: %w", day, err)
		}
	} else {
		header := &sheets.ValueRange{Values: [][]any{toCells(domain.RecordHeader)}}
		_, err := s.svc.Spreadsheets.Values.
			Update(s.spreadsheetID, quoteSheet(day)+"!A1", header).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("write header to %s: %w", day, err)
		}
		if s.logger != nil {
			s.logger.Info("worksheet created", "partition", day)
		}
	}

	s.mu.Lock()
	s.known[day] = true
	s.mu.Unlock()
	return nil
}

func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func toCells(row []string) []any {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
	}
	return false
}

func isAlreadyExists(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "already exists")
	}
	return false
}
