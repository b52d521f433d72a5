// Command ladderbot runs the Ladder Maintenance Engine for one market:
// loads configuration, wires the exchange adapter, journal, alerting
// and observability server, then drives the Scheduler until a shutdown
// signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ladderbot/internal/alert"
	"ladderbot/internal/config"
	"ladderbot/internal/core"
	"ladderbot/internal/exchange"
	"ladderbot/internal/exchange/bitfinex"
	"ladderbot/internal/exchange/mock"
	"ladderbot/internal/infrastructure/health"
	"ladderbot/internal/infrastructure/server"
	"ladderbot/internal/journal"
	"ladderbot/internal/ladder/builder"
	"ladderbot/internal/ladder/closer"
	"ladderbot/internal/ladder/engine"
	"ladderbot/internal/ladder/guard"
	"ladderbot/internal/ladder/model"
	"ladderbot/internal/ladder/reconcile"
	"ladderbot/internal/ladder/scheduler"
	"ladderbot/pkg/concurrency"
	"ladderbot/pkg/logging"
	"ladderbot/pkg/telemetry"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the ladder configuration file")
	journalPath := flag.String("journal", "ladder.db", "path to the SQLite journal database (ignored with -journal-memory)")
	journalMemory := flag.Bool("journal-memory", false, "use an in-memory journal instead of SQLite")
	flag.Parse()

	if err := run(*configPath, *journalPath, *journalMemory); err != nil {
		fmt.Fprintln(os.Stderr, "ladderbot:", err)
		os.Exit(1)
	}
}

func run(configPath, journalPath string, useMemoryJournal bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	var logger core.ILogger = baseLogger.WithField("pair", cfg.App.Pair)

	coin1, coin2, err := splitPair(cfg.App.Pair)
	if err != nil {
		return err
	}

	adapter, err := newAdapter(cfg, logger)
	if err != nil {
		return fmt.Errorf("init exchange adapter: %w", err)
	}

	j, closeJournal, err := newJournal(journalPath, useMemoryJournal)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	defer closeJournal()

	alertManager := alert.NewAlertManager(logger)
	if url := string(cfg.Notify.SlackWebhookURL); url != "" && !cfg.App.Silent {
		alertManager.AddChannel(alert.NewSlackChannel(url))
	}
	if token := string(cfg.Notify.TelegramBotToken); token != "" && !cfg.App.Silent {
		alertManager.AddChannel(alert.NewTelegramChannel(token, cfg.Notify.TelegramChatID))
	}

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "ladder-closer",
		MaxWorkers:  cfg.Concurrency.ClosePoolSize,
		MaxCapacity: cfg.Concurrency.ClosePoolBuffer,
	}, logger)

	var previousFilledStates []string
	if len(cfg.Ladder.PreviousFilledOrderStates) > 0 {
		previousFilledStates = cfg.Ladder.PreviousFilledOrderStates
	}
	r := reconcile.New(logger, adapter, decodeStates(previousFilledStates))
	c := closer.New(logger, adapter, pool)
	g := guard.New(logger, adapter, alertManager)

	store := config.NewLiveStore(cfg)
	params := builder.Params{
		Pair:          cfg.App.Pair,
		Exchange:      adapter.Name(),
		Coin1:         coin1,
		Coin2:         coin2,
		N:             cfg.Ladder.Count,
		StepPercent:   cfg.Ladder.PriceStepPercent,
		AmountCoin:    cfg.Ladder.AmountCoin,
		NominalAmount: decimal.NewFromFloat(cfg.Ladder.Amount),
		AmountJitter:  cfg.Ladder.AmountJitter,
	}
	b := builder.New(logger, adapter, j, r, c, g, store, params)

	healthMgr := health.NewManager(logger)
	healthMgr.Register("exchange", func() error {
		_, err := adapter.GetRates(context.Background(), cfg.App.Pair)
		return err
	})

	if cfg.Telemetry.EnableMetrics {
		tel, err := telemetry.Setup("ladderbot")
		if err != nil {
			logger.Warn("telemetry setup failed, continuing without metrics export", "error", err)
		} else {
			defer tel.Shutdown(context.Background())
		}
	}

	obsServer := server.NewHealthServer(cfg.System.HealthPort, logger, healthMgr)

	eng := engine.New(logger, cfg.App.Pair, b, adapter, scheduler.Config{
		MinIntervalMs:    cfg.Timing.MinIntervalMs,
		IntervalSpreadMs: cfg.Timing.IntervalSpreadMs,
		InactivePollMs:   cfg.Timing.InactivePollMs,
	}, store.IsActive)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obsServer.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("observability server shutdown error", "error", err)
		}
	}()

	g2, gctx := errgroup.WithContext(ctx)
	g2.Go(func() error {
		eng.Run(gctx)
		return nil
	})

	logger.Info("ladderbot started")
	if err := g2.Wait(); err != nil {
		return err
	}

	if cfg.System.CancelOnExit {
		logger.Info("cancel_on_exit set, closing entire ladder")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		live, qerr := j.Query(shutdownCtx, journal.Query{Purpose: "ladder", Pair: cfg.App.Pair, Exchange: adapter.Name(), Processed: boolPtr(false)})
		if qerr != nil {
			logger.Warn("failed to query journal for exit cancellation", "error", qerr)
		} else {
			c.ReInit(shutdownCtx, cfg.App.Pair, live)
		}
	}

	logger.Info("ladderbot stopped")
	return nil
}

func boolPtr(b bool) *bool { return &b }

func splitPair(pair string) (coin1, coin2 string, err error) {
	parts := strings.SplitN(pair, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("pair %q must be expressed as BASE/QUOTE", pair)
	}
	return parts[0], parts[1], nil
}

func newAdapter(cfg *config.Config, logger core.ILogger) (exchange.Adapter, error) {
	switch cfg.App.Exchange {
	case "mock":
		return mock.New(logger), nil
	case "bitfinex":
		return bitfinex.New(&cfg.Exchange, logger), nil
	default:
		return nil, fmt.Errorf("unknown exchange adapter %q", cfg.App.Exchange)
	}
}

func newJournal(path string, useMemory bool) (journal.Journal, func(), error) {
	if useMemory {
		return journal.NewMemoryJournal(), func() {}, nil
	}
	j, err := journal.NewSQLiteJournal(path)
	if err != nil {
		return nil, nil, err
	}
	return j, func() { _ = j.Close() }, nil
}

func decodeStates(raw []string) []model.State {
	states := make([]model.State, 0, len(raw))
	for _, s := range raw {
		states = append(states, model.State(s))
	}
	return states
}
