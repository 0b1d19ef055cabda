package ports

import (
	"context"
	"time"

	"MedScanner/internal/domain"
)

// ArticleSource pulls candidate articles published since the given instant.
// Zero results is not an error; only hard transport or parse failures are.
type ArticleSource interface {
	Name() string
	Fetch(ctx context.Context, since time.Time) ([]domain.Article, error)
}

// LLM sends a single prompt to a language model and returns its raw text reply.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Sink stores classified records in daily partitions.
type Sink interface {
	// ListPartitions returns the existing partitions among the last n days ending at now.
	ListPartitions(ctx context.Context, lastNDays int, now time.Time) ([]string, error)
	ReadURLs(ctx context.Context, partition string) ([]string, error)
	Append(ctx context.Context, record domain.Record) error
}

// Notifier posts human-readable digests to a chat channel. Best effort.
type Notifier interface {
	Post(ctx context.Context, channelRef, message string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
