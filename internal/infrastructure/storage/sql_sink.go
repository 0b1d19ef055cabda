package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"MedScanner/internal/domain"
	"MedScanner/internal/ports"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultTable = "records"
)

// SQLSink persists records into a relational table partitioned by a day column.
type SQLSink struct {
	db      *sql.DB
	driver  string
	table   string
	builder sq.StatementBuilderType
}

var _ ports.Sink = (*SQLSink)(nil)

// OpenSQLSink opens the database, verifies the connection and creates the table if needed.
func OpenSQLSink(ctx context.Context, driver, dsn, table string) (*SQLSink, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite serialises writers.
		db.SetMaxOpenConns(1)
	}

	sink, err := NewSQLSink(db, driver, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := sink.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

// NewSQLSink wires an existing sql.DB.
func NewSQLSink(db *sql.DB, driver, table string) (*SQLSink, error) {
	if table == "" {
		table = defaultTable
	}
	var placeholder sq.PlaceholderFormat = sq.Question
	switch driver {
	case DriverSQLite:
	case DriverPostgres:
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	return &SQLSink{
		db:      db,
		driver:  driver,
		table:   pq.QuoteIdentifier(table),
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

// Migrate creates the records table and its day index.
func (s *SQLSink) Migrate(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			` + idColumn + `,
			day TEXT NOT NULL,
			source TEXT NOT NULL,
			main_category TEXT NOT NULL,
			subcategory TEXT NOT NULL,
			title TEXT NOT NULL,
			summary TEXT NOT NULL,
			url TEXT NOT NULL,
			ingested_at TEXT NOT NULL,
			cross_domain TEXT NOT NULL,
			application_context TEXT NOT NULL,
			projects TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pq.QuoteIdentifier(strings.Trim(s.table, `"`)+"_day_idx") + ` ON ` + s.table + ` (day)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate records: %w", err)
		}
	}
	return nil
}

// ListPartitions returns the days of the last lastNDays that hold records, newest first.
func (s *SQLSink) ListPartitions(ctx context.Context, lastNDays int, now time.Time) ([]string, error) {
	days := windowDays(lastNDays, now)
	if len(days) == 0 {
		return nil, nil
	}

	query, args, err := s.builder.
		Select("DISTINCT day").
		From(s.table).
		Where(sq.Eq{"day": days}).
		OrderBy("day DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build partitions query: %w", err)
	}
	return s.queryStrings(ctx, query, args...)
}

// ReadURLs lists the URLs stored for one day.
func (s *SQLSink) ReadURLs(ctx context.Context, partition string) ([]string, error) {
	query, args, err := s.builder.
		Select("url").
		From(s.table).
		Where(sq.Eq{"day": partition}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build urls query: %w", err)
	}
	return s.queryStrings(ctx, query, args...)
}

// Append inserts one record under the day of its ingestion timestamp.
func (s *SQLSink) Append(ctx context.Context, record domain.Record) error {
	row := record.Row()
	query, args, err := s.builder.
		Insert(s.table).
		Columns("day", "source", "main_category", "subcategory", "title", "summary",
			"url", "ingested_at", "cross_domain", "application_context", "projects").
		Values(domain.PartitionFor(record.IngestedAt), row[0], row[1], row[2], row[3], row[4],
			row[5], row[6], row[7], row[8], row[9]).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build insert: %v", domain.ErrSinkWrite, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: insert record: %v", domain.ErrSinkWrite, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLSink) Close() error {
	return s.db.Close()
}

func (s *SQLSink) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan value: %w", err)
		}
		out = append(out, v)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}
	return out, nil
}
