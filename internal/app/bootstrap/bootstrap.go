package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	claimengine "merkledrop/contexts/token-distribution/claim-engine"
	badgeradapter "merkledrop/contexts/token-distribution/claim-engine/adapters/badger"
	"merkledrop/contexts/token-distribution/claim-engine/adapters/ledger"
	"merkledrop/contexts/token-distribution/claim-engine/adapters/memory"
	postgresadapter "merkledrop/contexts/token-distribution/claim-engine/adapters/postgres"
	"merkledrop/contexts/token-distribution/claim-engine/application/workers"
	"merkledrop/contexts/token-distribution/claim-engine/ports"
	"merkledrop/internal/platform/config"
	"merkledrop/internal/platform/db"
	"merkledrop/internal/platform/ethereum"
	"merkledrop/internal/platform/httpserver"
	"merkledrop/internal/platform/kv"
	"merkledrop/internal/platform/messaging"
	"merkledrop/internal/platform/metrics"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type dropStore interface {
	ports.StateStore
	ports.OutboxRepository
}

type assetLedger interface {
	ports.AssetLedger
	ports.BalanceReader
}

type APIApp struct {
	server       *httpserver.Server
	relay        *workers.OutboxRelay
	pollInterval time.Duration
	funding      *ledgerFunding
	bus          *messaging.Bus
	resources    resources
	logger       *slog.Logger
}

type WorkerApp struct {
	resources    resources
	outboxRelay  workers.OutboxRelay
	pollInterval time.Duration
	bus          *messaging.Bus
	audit        eventAudit
	logger       *slog.Logger
}

// resources are the external handles a process owns and closes on exit.
type resources struct {
	postgres *db.Postgres
	badger   *badger.DB
	eth      *ethclient.Client
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	owner, err := parseOwner(cfg.DropOwner)
	if err != nil {
		return nil, err
	}

	app := &APIApp{pollInterval: cfg.OutboxPollInterval, logger: logger}
	store, err := openStore(ctx, cfg, &app.resources, logger)
	if err != nil {
		_ = app.resources.Close()
		return nil, err
	}
	assets, memLedger, err := openLedger(ctx, cfg, owner, &app.resources, logger)
	if err != nil {
		_ = app.resources.Close()
		return nil, err
	}

	module := claimengine.NewModule(claimengine.Dependencies{
		Store:       store,
		Ledger:      assets,
		Balances:    assets,
		Clock:       postgresadapter.SystemClock{},
		IDGenerator: postgresadapter.UUIDGenerator{},
		Logger:      logger,
	})
	if _, err := module.Initialize(ctx, cfg.DropID, owner); err != nil {
		_ = app.resources.Close()
		return nil, fmt.Errorf("initialize drop %s: %w", cfg.DropID, err)
	}

	m := metrics.New()
	app.bus = messaging.NewBus(cfg.KafkaBrokers, logger)
	if cfg.EnableOutboxRelay {
		app.relay = &workers.OutboxRelay{
			Outbox:    store,
			Publisher: m.InstrumentPublisher(app.bus),
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		}
	}

	if memLedger != nil && cfg.MemoryLedgerSupply != "" {
		funding, err := newLedgerFunding(memLedger, cfg.MemoryLedgerSupply, logger)
		if err != nil {
			_ = app.resources.Close()
			return nil, err
		}
		if !cfg.EnableOutboxRelay {
			logger.Warn("memory ledger supply ignored without the outbox relay",
				"event", "bootstrap_funding_disabled",
				"module", "internal/app/bootstrap",
				"layer", "platform",
			)
		} else {
			app.funding = funding
		}
	}

	var auth httpserver.Authenticator = httpserver.SignatureAuthenticator{}
	if cfg.AuthMode == config.AuthHeader {
		logger.Warn("header authentication trusts X-Caller-Address as is",
			"event", "bootstrap_header_auth_enabled",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		auth = httpserver.HeaderAuthenticator{}
	}

	app.server = httpserver.New(module, httpserver.Options{
		Addr:               normalizeAddr(cfg.HTTPPort),
		Authenticator:      auth,
		ClaimRatePerSecond: cfg.ClaimRatePerSecond,
		ClaimBurst:         cfg.ClaimRateBurst,
		Metrics:            m,
		Logger:             logger,
	})
	return app, nil
}

// BuildWorker relays the outbox of a shared postgres store. Memory and badger
// stores are owned by the API process, which relays them itself. The worker
// only runs when the API relay is disabled.
func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	app := &WorkerApp{
		pollInterval: cfg.OutboxPollInterval,
		bus:          messaging.NewBus(cfg.KafkaBrokers, logger),
		audit:        eventAudit{logger: logger},
		logger:       logger,
	}
	store, err := openStore(ctx, cfg, &app.resources, logger)
	if err != nil {
		_ = app.resources.Close()
		return nil, err
	}

	m := metrics.New()
	app.outboxRelay = workers.OutboxRelay{
		Outbox:    store,
		Publisher: m.InstrumentPublisher(app.bus),
		Clock:     postgresadapter.SystemClock{},
		BatchSize: 100,
		Logger:    logger,
	}
	return app, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.funding != nil {
		if err := a.bus.Subscribe(ctx, claimTokenSetTopic, "memory-ledger-funding", a.funding.Handle); err != nil {
			return err
		}
	}
	if a.relay != nil {
		relay := *a.relay
		g.Go(func() error {
			return relay.Run(ctx, a.pollInterval)
		})
	}
	if a.resources.badger != nil {
		g.Go(func() error {
			kv.RunValueLogGC(ctx, a.resources.badger, 10*time.Minute, a.logger)
			return nil
		})
	}

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"outbox_relay", a.relay != nil,
	)
	g.Go(func() error {
		return a.server.Run(ctx)
	})
	return g.Wait()
}

func (a *APIApp) Close() error {
	return a.resources.Close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.audit.subscribe(ctx, w.bus); err != nil {
		return err
	}
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)
	return w.outboxRelay.Run(ctx, w.pollInterval)
}

func (w *WorkerApp) Close() error {
	return w.resources.Close()
}

func (r *resources) Close() error {
	var errs []error
	if r.eth != nil {
		r.eth.Close()
	}
	if r.badger != nil {
		errs = append(errs, r.badger.Close())
	}
	if r.postgres != nil {
		errs = append(errs, r.postgres.Close())
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.Config, res *resources, logger *slog.Logger) (dropStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := db.Connect(ctx, cfg.PostgresDSN, db.DefaultPoolConfig(), logger)
		if err != nil {
			return nil, err
		}
		res.postgres = pg
		repo := postgresadapter.NewRepository(pg.DB, cfg.DropID, logger)
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate drop schema: %w", err)
		}
		return repo, nil
	case config.StoreBadger:
		kvdb, err := kv.OpenBadger(kv.BadgerConfig{
			Path:       cfg.BadgerPath,
			SyncWrites: true,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		res.badger = kvdb
		return badgeradapter.NewStore(kvdb, cfg.DropID, logger), nil
	default:
		return memory.NewStore(logger), nil
	}
}

// openLedger returns the memory ledger separately when it is selected so
// bootstrap can fund it.
func openLedger(
	ctx context.Context,
	cfg config.Config,
	owner common.Address,
	res *resources,
	logger *slog.Logger,
) (assetLedger, *ledger.MemoryLedger, error) {
	if cfg.LedgerDriver != config.LedgerERC20 {
		memLedger := ledger.NewMemoryLedger(owner, logger)
		return memLedger, memLedger, nil
	}

	client, err := ethereum.Dial(ctx, cfg.EthRPCURL, cfg.EthChainID, logger)
	if err != nil {
		return nil, nil, err
	}
	res.eth = client
	transactor, err := ethereum.NewTransactor(cfg.EthPrivateKey, cfg.EthChainID)
	if err != nil {
		return nil, nil, err
	}
	erc20, err := ledger.NewERC20Ledger(client, transactor, ledger.ERC20Settings{
		ConfirmTimeout: cfg.LedgerConfirmTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewBreakerLedger(erc20, ledger.BreakerSettings{
		Name:                "erc20-ledger",
		ConsecutiveFailures: 5,
		OpenTimeout:         cfg.LedgerBreakerTimeout,
	}, logger), nil, nil
}

func parseOwner(raw string) (common.Address, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return common.Address{}, errors.New("DROP_OWNER is required")
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("DROP_OWNER %q is not a hex address", value)
	}
	owner := common.HexToAddress(value)
	if owner == (common.Address{}) {
		return common.Address{}, errors.New("DROP_OWNER must not be the zero address")
	}
	return owner, nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
