package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/kalshimaker/config"
	"github.com/alejandrodnm/kalshimaker/internal/adapters/kalshi"
	"github.com/alejandrodnm/kalshimaker/internal/adapters/notify"
	"github.com/alejandrodnm/kalshimaker/internal/adapters/paper"
	"github.com/alejandrodnm/kalshimaker/internal/adapters/storage"
	"github.com/alejandrodnm/kalshimaker/internal/application/engine"
	"github.com/alejandrodnm/kalshimaker/internal/ports"
	"github.com/alejandrodnm/kalshimaker/internal/risk"
	"github.com/alejandrodnm/kalshimaker/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	ticker := flag.String("ticker", "", "market ticker (overrides config)")
	dryRun := flag.Bool("dry-run", false, "decide and print, never touch the exchange")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full cycle tables (default: compact 1-line)")
	rationale := flag.Bool("rationale", false, "print rejected intents and per-strategy skips")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *ticker != "" {
		cfg.Engine.Ticker = *ticker
	}
	if *dryRun {
		cfg.Engine.DryRun = true
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	slog.Info("kalshimaker starting",
		"config", *configPath,
		"ticker", cfg.Engine.Ticker,
		"dry_run", cfg.Engine.DryRun,
		"tick", cfg.TickInterval(),
	)

	// El signer solo hace falta en live o para canales privados del WS.
	var signer *kalshi.Signer
	if cfg.API.KeyID != "" && cfg.API.PrivateKeyPath != "" {
		signer, err = kalshi.NewSigner(cfg.API.KeyID, cfg.API.PrivateKeyPath)
		if err != nil {
			slog.Error("failed to load API credentials", "err", err)
			os.Exit(1)
		}
	}

	feed, err := kalshi.NewFeed(kalshi.FeedConfig{
		URL:     cfg.API.WSURL,
		Ticker:  cfg.Engine.Ticker,
		Private: signer != nil,
	}, signer)
	if err != nil {
		slog.Error("failed to create feed", "err", err)
		os.Exit(1)
	}
	defer feed.Close()

	var executor ports.OrderExecutor
	if cfg.Engine.DryRun {
		executor = paper.New()
	} else {
		executor = kalshi.NewTrader(cfg.API.RESTBase, signer)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole(*table, *rationale || cfg.Engine.DryRun)

	quoteCfg := cfg.StrategyConfig()
	var registry strategy.Registry
	if cfg.Strategies.Touch {
		registry.Register(strategy.NewTouchMaker(quoteCfg))
	}
	if cfg.Strategies.Depth {
		registry.Register(strategy.NewDepthLadder(quoteCfg))
	}
	if cfg.Strategies.Band {
		registry.Register(strategy.NewBandReplenish(quoteCfg))
	}
	if cfg.Strategies.Exit {
		registry.Register(strategy.NewExitMaker(quoteCfg))
	}

	guard := risk.New(cfg.RiskGuardConfig())

	eng := engine.New(engine.Config{
		Ticker:                cfg.Engine.Ticker,
		DryRun:                cfg.Engine.DryRun,
		TickInterval:          cfg.TickInterval(),
		CancelMoveTicks:       cfg.Engine.CancelMoveTicks,
		MaxInventoryContracts: cfg.Risk.MaxInventoryContracts,
		ReduceOnlyStep:        cfg.Engine.ReduceOnlyStep,
		OpenSyncTicks:         cfg.Engine.OpenSyncTicks,
		SubmitGrace:           cfg.SubmitGrace(),
	}, registry, guard, feed, executor, store, notifier)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	feed.Start(ctx)

	startedAt := time.Now()
	if err := eng.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	// El ctx de señales ya está cancelado; la consulta usa uno fresco.
	sumCtx, sumCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sumCancel()
	fills, err := store.Fills(sumCtx, cfg.Engine.Ticker, startedAt, time.Now())
	if err != nil {
		slog.Warn("failed to load session fills", "err", err)
	} else {
		notifier.PrintSessionSummary(cfg.Engine.Ticker, fills, eng.SessionPnl())
	}

	slog.Info("kalshimaker stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
