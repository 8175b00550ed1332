package main

import (
	"encoding/json"
	"fmt"
	"io"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/shared/valueobject"
	"github.com/primebond/ledger/internal/infrastructure/config"
	"github.com/primebond/ledger/internal/infrastructure/logger"
	"github.com/primebond/ledger/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

type globalOptions struct {
	logLevel string
	jsonOut  bool
}

// app is the subset of the server wiring the CLI needs. Commands run
// without notifications, gateway or event forwarding.
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	db         *persistence.Database
	plans      *appledger.PlanCatalog
	payments   *appledger.PaymentLedger
	settlement *appledger.SettlementService
	payouts    *appledger.PayoutScheduler
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(&logger.Config{
		Level:  opts.logLevel,
		Format: "console",
		Output: "stderr",
	}, "ledgerctl")
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(opts.logLevel)))
	if err != nil {
		return nil, err
	}

	currency, err := valueobject.ParseCurrency(cfg.Ledger.Currency)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	settings := appledger.Settings{
		Currency:           currency,
		RegistrationFee:    cfg.Ledger.RegistrationFee,
		MemberNumberPrefix: cfg.Ledger.MemberNumberPrefix,
	}

	scope := persistence.NewGormTransactionScope(db.DB)
	planRepo := persistence.NewGormPlanRepository(db.DB)
	investmentRepo := persistence.NewGormInvestmentRepository(db.DB)
	returnRepo := persistence.NewGormReturnRepository(db.DB)
	profiles := persistence.NewGormProfileStore(db.DB)

	manager := appledger.NewInvestmentManager(scope, planRepo, profiles, appledger.InvestmentManagerConfig{Logger: log})
	return &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		plans: appledger.NewPlanCatalog(planRepo, log),
		payments: appledger.NewPaymentLedger(scope, persistence.NewGormPaymentRepository(db.DB), investmentRepo, profiles, manager,
			appledger.PaymentLedgerConfig{Settings: settings, Logger: log}),
		settlement: appledger.NewSettlementService(scope, returnRepo, persistence.NewGormROIRepository(db.DB), investmentRepo, profiles, manager,
			appledger.SettlementServiceConfig{Logger: log}),
		payouts: appledger.NewPayoutScheduler(scope, investmentRepo, returnRepo, appledger.PayoutSchedulerConfig{
			BatchSize: cfg.Scheduler.BatchSize,
			Logger:    log,
		}),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("Error closing database", zap.Error(err))
	}
	_ = a.log.Sync()
}

// printResult writes v as indented JSON, or through text when JSON output is off
func printResult(w io.Writer, opts *globalOptions, v any, text func(io.Writer)) error {
	if opts.jsonOut || text == nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
