// Package poller runs the scan loop: for every monitored address it fetches
// the transactions past the watermark, classifies them, notifies mints and
// advances the watermark once the whole batch went through.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/core/tracker"
	"github.com/vietddude/mintwatch/internal/indexing/classifier"
	"github.com/vietddude/mintwatch/internal/indexing/notifier"
	"github.com/vietddude/mintwatch/internal/infra/storage"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultConcurrency = 1
)

// Source lists the transactions of an address.
type Source interface {
	FetchTransactions(ctx context.Context, address string, fromBlock uint64) ([]domain.Transaction, error)
}

// Classifier labels a transaction.
type Classifier interface {
	Classify(ctx context.Context, tx domain.Transaction) classifier.Verdict
}

// Observer receives scan outcomes, e.g. the health monitor.
type Observer interface {
	// ObserveScan reports one address scan. err is nil on success.
	ObserveScan(address string, nextBlock uint64, err error)

	// ObserveCycle reports a completed cycle.
	ObserveCycle(at time.Time)
}

// Config holds poller configuration
type Config struct {
	Source     Source
	Classifier Classifier
	Notifier   notifier.Notifier
	Channel    string
	Tracker    *tracker.Tracker

	// Journal receives transactions classified as unknown. Optional.
	Journal storage.MissedTxRepository

	// TxURL builds the link placed in notifications.
	TxURL func(hash string) string

	// Observer is optional.
	Observer Observer

	// OnCycle runs after every cycle, e.g. to persist state. Optional.
	OnCycle func(ctx context.Context)

	Interval    time.Duration
	Concurrency int
	Logger      *slog.Logger
}

// Stats summarizes one cycle.
type Stats struct {
	Addresses     int
	Failed        int
	Notifications int
	Unknown       int
}
