package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/mintwatch/internal/core/config"
	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/core/tracker"
	"github.com/vietddude/mintwatch/internal/indexing/classifier"
	"github.com/vietddude/mintwatch/internal/indexing/health"
	"github.com/vietddude/mintwatch/internal/indexing/metrics"
	"github.com/vietddude/mintwatch/internal/indexing/notifier"
	"github.com/vietddude/mintwatch/internal/indexing/poller"
	"github.com/vietddude/mintwatch/internal/indexing/recovery"
	"github.com/vietddude/mintwatch/internal/infra/explorer"
	"github.com/vietddude/mintwatch/internal/infra/telegram"
)

// Watcher is the main application struct that manages the service lifecycle.
type Watcher struct {
	cfg          *config.AppConfig
	stores       *Stores
	tracker      *tracker.Tracker
	cache        *classifier.Cache
	explorer     *explorer.Client
	poller       *poller.Poller
	recovery     *recovery.Worker
	commands     *Commands
	bot          *telegram.Bot
	healthMon    *health.Monitor
	healthServer *health.Server
	log          *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	saveMu       sync.Mutex
	savedTracker uint64
	savedCache   uint64
}

// NewWatcher loads the persisted state and wires every component.
func NewWatcher(ctx context.Context, cfg *config.AppConfig) (*Watcher, error) {
	log := slog.Default()

	// 1. Initialize Storage
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	state, err := stores.State.Load(ctx)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	// 2. Shared state
	t := tracker.New()
	t.Load(state.Addresses)
	cache := classifier.NewCache()
	cache.Load(state.MethodCache)
	log.Info("Loaded state", "addresses", t.Len(), "methods", cache.Len())

	// 3. Explorer and classifier
	client := explorer.NewClient(cfg.Explorer)
	cls := classifier.New(cfg.Classifier, client, cache)

	// 4. Notifier
	var bot *telegram.Bot
	var notify notifier.Notifier
	if cfg.Telegram.Token != "" {
		bot, err = telegram.NewBot(cfg.Telegram)
		if err != nil {
			stores.Close()
			return nil, err
		}
		notify = bot
	} else {
		log.Warn("Telegram token not configured, notifications go to the log")
		notify = notifier.NewLogNotifier(log)
	}

	w := &Watcher{
		cfg:          cfg,
		stores:       stores,
		tracker:      t,
		cache:        cache,
		explorer:     client,
		bot:          bot,
		log:          log.With("component", "watcher"),
		savedTracker: t.Version(),
		savedCache:   cache.Version(),
	}

	// 5. Health
	w.healthMon = health.NewMonitor(t, stores.Journal, cfg.Poller.Interval)
	w.healthServer = health.NewServer(w.healthMon, cfg.Server.Port)

	// 6. Poller
	w.poller = poller.New(poller.Config{
		Source:      client,
		Classifier:  cls,
		Notifier:    notify,
		Channel:     cfg.Telegram.Channel,
		Tracker:     t,
		Journal:     stores.Journal,
		TxURL:       client.TxURL,
		Observer:    w.healthMon,
		OnCycle:     w.flushOrWarn,
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		Logger:      log,
	})

	// 7. Recovery
	if !cfg.Recovery.Disabled {
		backoff := recovery.DefaultBackoff()
		if cfg.Recovery.MaxAttempts > 0 {
			backoff.MaxAttempts = cfg.Recovery.MaxAttempts
		}
		w.recovery = recovery.NewWorker(recovery.Config{
			Repo:       stores.Journal,
			Classifier: cls,
			Notifier:   notify,
			Channel:    cfg.Telegram.Channel,
			TxURL:      client.TxURL,
			Strategy:   backoff,
			Interval:   cfg.Recovery.Interval,
			Logger:     log,
		})
	}

	// 8. Commands
	w.commands = NewCommands(t, client, client.AddressURL, w.flushOrWarn)

	return w, nil
}

// Commands returns the operator command surface.
func (w *Watcher) Commands() *Commands {
	return w.commands
}

// Tracker returns the live set of monitored addresses.
func (w *Watcher) Tracker() *tracker.Tracker {
	return w.tracker
}

// Start starts the watcher and all its components. It returns immediately.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	// Start Health Server
	go func() {
		if err := w.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("Health server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if w.stores.db != nil {
		w.stores.db.StartMetricsCollector(ctx)
	}

	w.healthMon.MarkStarted()
	w.goRun(ctx, "poller", w.poller.Start)

	if w.recovery != nil {
		w.goRun(ctx, "recovery", w.recovery.Start)
	}

	w.goRun(ctx, "flusher", w.runFlusher)

	if w.bot != nil {
		w.goRun(ctx, "telegram", func(ctx context.Context) error {
			return w.bot.Listen(ctx, w.commands.HandleText)
		})
	}

	w.log.Info("Watcher started",
		"addresses", w.tracker.Len(),
		"interval", w.cfg.Poller.Interval,
		"port", w.cfg.Server.Port,
	)
	return nil
}

// Stop stops every component, saves the state and closes the backends.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Info("Stopping Watcher...")

	if err := w.poller.Stop(); err != nil {
		w.log.Warn("Failed to stop poller", "error", err)
	}
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.log.Warn("Timed out waiting for components to stop")
	}

	var errs []error
	if err := w.persist(ctx, true); err != nil {
		errs = append(errs, err)
	}
	if err := w.stores.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop health server: %w", err))
	}
	return errors.Join(errs...)
}

// Flush saves the state if the tracker or the method cache changed since
// the last save.
func (w *Watcher) Flush(ctx context.Context) error {
	return w.persist(ctx, false)
}

func (w *Watcher) flushOrWarn(ctx context.Context) {
	if err := w.Flush(ctx); err != nil {
		w.log.Warn("Failed to save state", "error", err)
	}
}

func (w *Watcher) persist(ctx context.Context, force bool) error {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	tv, cv := w.tracker.Version(), w.cache.Version()
	if !force && tv == w.savedTracker && cv == w.savedCache {
		return nil
	}

	state := &domain.State{
		Addresses:   w.tracker.List(),
		MethodCache: w.cache.Snapshot(),
	}
	if err := w.stores.State.Save(ctx, state); err != nil {
		metrics.StateSavesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to save state: %w", err)
	}
	metrics.StateSavesTotal.WithLabelValues("ok").Inc()

	w.savedTracker, w.savedCache = tv, cv
	w.log.Debug("State saved", "addresses", len(state.Addresses))
	return nil
}

func (w *Watcher) runFlusher(ctx context.Context) error {
	interval := w.cfg.Storage.FlushInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.flushOrWarn(ctx)
		}
	}
}

func (w *Watcher) goRun(ctx context.Context, name string, fn func(ctx context.Context) error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error("Component failed", "component", name, "error", err)
		}
	}()
}
