package main

import (
	"context"
	"log" // Standard log only for fatal errors before the logger is ready
	"os/signal"
	"sync"
	"syscall"

	"fxpilot/config"
	"fxpilot/internal/adapters/logger"
	"fxpilot/internal/adapters/oanda"
	"fxpilot/internal/adapters/sqlite"
	"fxpilot/internal/advisors"
	"fxpilot/internal/pipeline"
	"fxpilot/internal/reconcile"
	"fxpilot/internal/risk"
	"fxpilot/internal/safety"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Ledger repository
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize ledger repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing ledger repository")
		}
	}()

	// 4. Broker adapter (market data + execution)
	broker, err := oanda.New(oanda.Config{
		Token:     cfg.OandaToken,
		AccountID: cfg.OandaAccountID,
		Practice:  cfg.IsPractice,
		Logger:    appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize OANDA client: %v", err)
	}

	// 5. Safety interlocks: single instances, injected by reference
	breaker := safety.NewCircuitBreaker(cfg.CBMaxFailures, cfg.CBResetWindow, appLogger)
	kill := safety.NewFileKillSwitch(cfg.KillSwitchFile)

	// 6. Risk gate
	gate, err := risk.NewGate(risk.Config{
		AccountBalance:     cfg.AccountBalance,
		MaxRiskPerTrade:    cfg.MaxRiskPerTrade,
		MinRiskRewardRatio: cfg.MinRiskRewardRatio,
		MaxDailyDrawdown:   cfg.MaxDailyDrawdown,
		MaxOpenPositions:   cfg.MaxOpenPositions,
		MinLotSize:         cfg.MinLotSize,
		MaxLotSize:         cfg.MaxLotSize,
		LotSizeStep:        cfg.LotSizeStep,
		MinSLDistancePips:  cfg.MinSLDistancePips,
		MaxSLDistancePips:  cfg.MaxSLDistancePips,
		PipValue:           cfg.PipValue,
	}, repo, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize risk gate: %v", err)
	}

	// 7. Advisory chain: real advisors with deterministic fallbacks
	chat := advisors.NewOpenAIClient(cfg.OpenAIKey, cfg.AdvisorModel, appLogger)
	orch, err := pipeline.NewOrchestrator(
		pipeline.Config{Pair: cfg.Pair, RunInterval: cfg.RunInterval, MaxRetries: cfg.MaxRetries},
		appLogger, broker, broker, repo, repo, gate, breaker, kill,
		pipeline.Stage{Primary: advisors.NewStrategist(chat), Fallback: advisors.FallbackStrategist{}},
		pipeline.Stage{Primary: advisors.NewArchitect(chat), Fallback: advisors.FallbackArchitect{}},
		pipeline.Stage{Primary: advisors.NewTactical(chat), Fallback: advisors.FallbackTactical{}},
	)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize orchestrator: %v", err)
	}

	// 8. Position reconciler, on its own cadence
	rec, err := reconcile.NewReconciler(
		reconcile.Config{Interval: cfg.ReconcileInterval, PipValue: cfg.PipValue},
		appLogger, repo, broker, broker, repo,
	)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize reconciler: %v", err)
	}

	// 9. Run both loops until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = orch.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = rec.Run(ctx)
	}()
	wg.Wait()

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
