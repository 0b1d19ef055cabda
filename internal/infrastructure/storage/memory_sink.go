package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"MedScanner/internal/domain"
	"MedScanner/internal/ports"
)

// MemorySink keeps records in process memory. It backs dry runs and tests.
type MemorySink struct {
	mu         sync.Mutex
	partitions map[string][]domain.Record
}

var _ ports.Sink = (*MemorySink)(nil)

// NewMemorySink builds an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{partitions: map[string][]domain.Record{}}
}

// ListPartitions returns days inside the window that hold at least one record, newest first.
func (m *MemorySink) ListPartitions(_ context.Context, lastNDays int, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, day := range windowDays(lastNDays, now) {
		if _, ok := m.partitions[day]; ok {
			out = append(out, day)
		}
	}
	return out, nil
}

// ReadURLs lists the URLs stored in a partition.
func (m *MemorySink) ReadURLs(_ context.Context, partition string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.partitions[partition]
	urls := make([]string, 0, len(records))
	for _, r := range records {
		urls = append(urls, r.URL)
	}
	return urls, nil
}

// Append stores the record under the day of its ingestion timestamp.
func (m *MemorySink) Append(_ context.Context, record domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := domain.PartitionFor(record.IngestedAt)
	m.partitions[day] = append(m.partitions[day], record)
	return nil
}

// Records returns a copy of every stored record ordered by partition.
func (m *MemorySink) Records() []domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	days := make([]string, 0, len(m.partitions))
	for day := range m.partitions {
		days = append(days, day)
	}
	sort.Strings(days)

	var out []domain.Record
	for _, day := range days {
		out = append(out, m.partitions[day]...)
	}
	return out
}

// windowDays lists the partition names of the last n days ending at now, newest first.
func windowDays(n int, now time.Time) []string {
	if n <= 0 {
		return nil
	}
	days := make([]string, 0, n)
	today := now.UTC()
	for i := 0; i < n; i++ {
		days = append(days, domain.PartitionFor(today.AddDate(0, 0, -i)))
	}
	return days
}
