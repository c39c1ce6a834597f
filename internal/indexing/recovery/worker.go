// Package recovery retries the classification of journaled transactions.
//
// The poller never holds a watermark back for a transaction whose detail
// page could not be read. Instead it journals the transaction and this
// worker classifies it again later, delivering a late notification when it
// turns out to be a mint.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/indexing/classifier"
	"github.com/vietddude/mintwatch/internal/indexing/metrics"
	"github.com/vietddude/mintwatch/internal/indexing/notifier"
	"github.com/vietddude/mintwatch/internal/infra/storage"
)

// DefaultInterval is the pause between journal sweeps.
const DefaultInterval = time.Minute

// Classifier labels a transaction.
type Classifier interface {
	Classify(ctx context.Context, tx domain.Transaction) classifier.Verdict
}

// Config holds worker configuration.
type Config struct {
	Repo       storage.MissedTxRepository
	Classifier Classifier
	Notifier   notifier.Notifier
	Channel    string
	TxURL      func(hash string) string
	Strategy   RetryStrategy
	Interval   time.Duration
	Logger     *slog.Logger
}

// Outcome summarizes one sweep.
type Outcome struct {
	Resolved int
	Notified int
	Retried  int
	Dropped  int
	Waiting  int
}

// Worker processes the miss journal.
type Worker struct {
	cfg Config
	log *slog.Logger
	now func() time.Time
}

// NewWorker creates a new journal worker.
func NewWorker(cfg Config) *Worker {
	if cfg.Strategy == nil {
		cfg.Strategy = DefaultBackoff()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.TxURL == nil {
		cfg.TxURL = func(hash string) string { return hash }
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		cfg: cfg,
		log: log.With("component", "recovery"),
		now: time.Now,
	}
}

// Start sweeps the journal on every interval until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.ProcessAll(ctx); err != nil {
				w.log.Warn("Journal sweep failed", "error", err)
			}
		}
	}
}

// ProcessAll retries every journaled transaction whose backoff elapsed.
func (w *Worker) ProcessAll(ctx context.Context) (Outcome, error) {
	var out Outcome

	entries, err := w.cfg.Repo.List(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to list missed transactions: %w", err)
	}
	defer w.updateGauge(ctx)

	for _, missed := range entries {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if err := w.processOne(ctx, missed, &out); err != nil {
			return out, err
		}
	}

	if out != (Outcome{}) {
		w.log.Info("Journal sweep complete",
			"resolved", out.Resolved,
			"notified", out.Notified,
			"retried", out.Retried,
			"dropped", out.Dropped,
			"waiting", out.Waiting,
		)
	}
	return out, nil
}

func (w *Worker) processOne(ctx context.Context, missed *domain.MissedTransaction, out *Outcome) error {
	if !w.cfg.Strategy.ShouldRetry(missed.Attempts) {
		w.log.Warn("Giving up on transaction",
			"address", missed.Address,
			"tx", missed.Transaction.Hash,
			"attempts", missed.Attempts,
		)
		if err := w.cfg.Repo.Resolve(ctx, missed.ID); err != nil {
			return fmt.Errorf("failed to drop missed transaction %s: %w", missed.ID, err)
		}
		out.Dropped++
		return nil
	}

	delay := w.cfg.Strategy.GetDelay(missed.Attempts)
	if w.now().Before(missed.LastAttempt.Add(delay)) {
		out.Waiting++
		return nil
	}

	verdict := w.cfg.Classifier.Classify(ctx, missed.Transaction)
	metrics.VerdictsTotal.WithLabelValues(verdict.String()).Inc()

	switch verdict {
	case classifier.VerdictMint:
		text := notifier.FormatMint(w.cfg.TxURL(missed.Transaction.Hash), missed.Transaction, missed.Name)
		if err := w.cfg.Notifier.Notify(ctx, w.cfg.Channel, text); err != nil {
			metrics.NotificationsTotal.WithLabelValues("error").Inc()
			w.log.Warn("Failed to deliver late notification", "tx", missed.Transaction.Hash, "error", err)
			return w.retry(ctx, missed, out)
		}
		metrics.NotificationsTotal.WithLabelValues("ok").Inc()
		out.Notified++
		w.log.Info("Late mint notified", "name", missed.Name, "tx", missed.Transaction.Hash)
	case classifier.VerdictNotMint:
	default:
		return w.retry(ctx, missed, out)
	}

	if err := w.cfg.Repo.Resolve(ctx, missed.ID); err != nil {
		return fmt.Errorf("failed to resolve missed transaction %s: %w", missed.ID, err)
	}
	out.Resolved++
	return nil
}

func (w *Worker) retry(ctx context.Context, missed *domain.MissedTransaction, out *Outcome) error {
	if err := w.cfg.Repo.IncrementAttempt(ctx, missed.ID); err != nil {
		return fmt.Errorf("failed to increment attempt: %w", err)
	}
	out.Retried++
	return nil
}

func (w *Worker) updateGauge(ctx context.Context) {
	if n, err := w.cfg.Repo.Count(ctx); err == nil {
		metrics.MissedTransactions.Set(float64(n))
	}
}
