package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/core/tracker"
	"github.com/vietddude/mintwatch/internal/indexing/classifier"
	"github.com/vietddude/mintwatch/internal/indexing/metrics"
	"github.com/vietddude/mintwatch/internal/indexing/notifier"
	"github.com/vietddude/mintwatch/internal/infra/explorer"
)

// ErrPanic wraps a panic recovered while scanning one address.
var ErrPanic = errors.New("panic during address scan")

// Poller scans every monitored address on a fixed interval.
type Poller struct {
	cfg      Config
	log      *slog.Logger
	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a poller.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.TxURL == nil {
		cfg.TxURL = func(hash string) string { return hash }
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		cfg:  cfg,
		log:  log.With("component", "poller"),
		stop: make(chan struct{}),
	}
}

// Start runs cycles until ctx is cancelled or Stop is called. The first
// cycle starts immediately.
func (p *Poller) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("poller already running")
	}
	defer p.running.Store(false)

	p.log.Info("Poller started", "interval", p.cfg.Interval, "concurrency", p.cfg.Concurrency)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.RunCycle(ctx)

		select {
		case <-ctx.Done():
			p.log.Info("Poller stopped", "reason", ctx.Err())
			return nil
		case <-p.stop:
			p.log.Info("Poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Stop stops the loop after the current cycle.
func (p *Poller) Stop() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return nil
}

// Running reports whether Start is active.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// RunCycle scans a snapshot of the monitored addresses once. A failure of
// one address never affects the others.
func (p *Poller) RunCycle(ctx context.Context) Stats {
	addresses := p.cfg.Tracker.List()
	results := make([]scanResult, len(addresses))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, addr := range addresses {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = p.scan(ctx, addr)
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{Addresses: len(addresses)}
	for _, r := range results {
		stats.Notifications += r.notified
		stats.Unknown += r.unknown
		if r.err != nil {
			stats.Failed++
		}
	}

	metrics.CyclesTotal.Inc()
	metrics.TrackedAddresses.Set(float64(p.cfg.Tracker.Len()))
	if p.cfg.Observer != nil {
		p.cfg.Observer.ObserveCycle(time.Now())
	}
	if p.cfg.OnCycle != nil {
		p.cfg.OnCycle(ctx)
	}

	p.log.Debug("Cycle complete",
		"addresses", stats.Addresses,
		"failed", stats.Failed,
		"notifications", stats.Notifications,
		"unknown", stats.Unknown,
	)
	return stats
}

type scanResult struct {
	notified int
	unknown  int
	err      error
}

func (p *Poller) scan(ctx context.Context, addr domain.MonitoredAddress) scanResult {
	res := p.processAddress(ctx, addr)

	switch {
	case res.err == nil:
		metrics.AddressScansTotal.WithLabelValues("ok").Inc()
	case ctx.Err() != nil:
		metrics.AddressScansTotal.WithLabelValues("cancelled").Inc()
	default:
		metrics.AddressScansTotal.WithLabelValues("error").Inc()
		p.log.Error("Failed to scan address",
			"address", addr.Address,
			"name", addr.Name,
			"nextBlock", addr.NextBlock,
			"error", res.err,
		)
	}

	next := addr.NextBlock
	if current, ok := p.cfg.Tracker.Get(addr.Address); ok {
		next = current.NextBlock
		metrics.AddressNextBlock.WithLabelValues(addr.Address).Set(float64(next))
	}
	if p.cfg.Observer != nil {
		p.cfg.Observer.ObserveScan(addr.Address, next, res.err)
	}
	return res
}

// processAddress handles one batch. The watermark only moves after every
// transaction of the batch has been classified and every mint delivered.
func (p *Poller) processAddress(ctx context.Context, addr domain.MonitoredAddress) (res scanResult) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	txs, err := p.cfg.Source.FetchTransactions(ctx, addr.Address, addr.NextBlock)
	if errors.Is(err, explorer.ErrNoTransactions) {
		return res
	}
	if err != nil {
		res.err = fmt.Errorf("failed to fetch transactions: %w", err)
		return res
	}
	if len(txs) == 0 {
		return res
	}

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}

		verdict := p.cfg.Classifier.Classify(ctx, tx)
		metrics.VerdictsTotal.WithLabelValues(verdict.String()).Inc()

		switch verdict {
		case classifier.VerdictMint:
			if err := p.notifyMint(ctx, addr.Name, tx); err != nil {
				res.err = err
				return res
			}
			res.notified++
		case classifier.VerdictUnknown:
			res.unknown++
			p.log.Warn("Could not classify transaction",
				"address", addr.Address,
				"tx", tx.Hash,
				"block", tx.BlockNumber,
			)
			p.journal(ctx, addr, tx)
		}
	}

	last := txs[len(txs)-1].BlockNumber
	if err := p.cfg.Tracker.Advance(addr.Address, last+1); err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			p.log.Debug("Address removed during scan", "address", addr.Address)
			return res
		}
		res.err = fmt.Errorf("failed to advance watermark: %w", err)
	}
	return res
}

func (p *Poller) notifyMint(ctx context.Context, name string, tx domain.Transaction) error {
	text := notifier.FormatMint(p.cfg.TxURL(tx.Hash), tx, name)
	if err := p.cfg.Notifier.Notify(ctx, p.cfg.Channel, text); err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to notify mint %s: %w", tx.Hash, err)
	}
	metrics.NotificationsTotal.WithLabelValues("ok").Inc()
	p.log.Info("Mint notified", "name", name, "tx", tx.Hash, "block", tx.BlockNumber)
	return nil
}

func (p *Poller) journal(ctx context.Context, addr domain.MonitoredAddress, tx domain.Transaction) {
	if p.cfg.Journal == nil {
		return
	}
	now := time.Now()
	missed := &domain.MissedTransaction{
		ID:          uuid.New().String(),
		Address:     addr.Address,
		Name:        addr.Name,
		Transaction: tx,
		Reason:      "transaction page unavailable",
		LastAttempt: now,
		CreatedAt:   now,
	}
	if err := p.cfg.Journal.Add(ctx, missed); err != nil {
		p.log.Warn("Failed to journal transaction", "tx", tx.Hash, "error", err)
	}
}
