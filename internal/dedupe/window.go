package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"MedScanner/internal/fingerprint"
	"MedScanner/internal/ports"
)

// DefaultWindowDays is the lookback used when none is configured.
const DefaultWindowDays = 3

// Window is the set of fingerprints seen in the last N days of persisted records,
// extended in memory with every article decided during the current run.
type Window struct {
	mu     sync.Mutex
	tokens map[string]struct{}
}

// NewWindow creates an empty window, optionally seeded with tokens.
func NewWindow(tokens ...string) *Window {
	w := &Window{tokens: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		if t != "" {
			w.tokens[t] = struct{}{}
		}
	}
	return w
}

// Build reads every partition of the last windowDays days and fingerprints the stored URLs.
// A partition that cannot be read contributes nothing; listing failures are returned.
func Build(ctx context.Context, sink ports.Sink, windowDays int, now time.Time, log *slog.Logger) (*Window, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	w := NewWindow()
	if sink == nil {
		return w, nil
	}

	partitions, err := sink.ListPartitions(ctx, windowDays, now)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	for _, partition := range partitions {
		urls, err := sink.ReadURLs(ctx, partition)
		if err != nil {
			if log != nil {
				log.Warn("skip unreadable partition", "partition", partition, "error", err)
			}
			continue
		}
		loaded := 0
		for _, u := range urls {
			if u == "" {
				continue
			}
			w.tokens[fingerprint.Of(u)] = struct{}{}
			loaded++
		}
		if log != nil {
			log.Debug("loaded partition", "partition", partition, "urls", loaded)
		}
	}

	if log != nil {
		log.Info("recency window built", "days", windowDays, "partitions", len(partitions), "tokens", w.Len())
	}
	return w, nil
}

// Contains reports whether token was already seen.
func (w *Window) Contains(token string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.tokens[token]
	return ok
}

// Add records token as seen. It returns false when token was already present.
func (w *Window) Add(token string) bool {
	if token == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.tokens[token]; ok {
		return false
	}
	w.tokens[token] = struct{}{}
	return true
}

// Len returns the number of known tokens.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tokens)
}
