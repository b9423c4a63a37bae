// Command solver is the intent solver's entrypoint, following the
// teacher's cmd/appserver/main.go flag-parsing shape: -config selects the
// TOML document, -migrate applies storage migrations and exits, otherwise
// the process wires every component and blocks on an OS signal before
// calling system.Manager.StopAll (§6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/r3e-network/intent-solver/internal/account"
	"github.com/r3e-network/intent-solver/internal/account/kms"
	"github.com/r3e-network/intent-solver/internal/account/localkey"
	"github.com/r3e-network/intent-solver/internal/app/system"
	"github.com/r3e-network/intent-solver/internal/config"
	"github.com/r3e-network/intent-solver/internal/delivery"
	"github.com/r3e-network/intent-solver/internal/delivery/providers/jsonrpc"
	"github.com/r3e-network/intent-solver/internal/delivery/providers/neo"
	"github.com/r3e-network/intent-solver/internal/discovery"
	"github.com/r3e-network/intent-solver/internal/discovery/sources/cron"
	"github.com/r3e-network/intent-solver/internal/discovery/sources/logscan"
	domainintent "github.com/r3e-network/intent-solver/internal/domain/intent"
	"github.com/r3e-network/intent-solver/internal/engine"
	"github.com/r3e-network/intent-solver/internal/metrics"
	ordersvc "github.com/r3e-network/intent-solver/internal/order"
	"github.com/r3e-network/intent-solver/internal/order/standards/eip7683"
	"github.com/r3e-network/intent-solver/internal/order/strategy/capprofit"
	"github.com/r3e-network/intent-solver/internal/order/strategy/script"
	settlementsvc "github.com/r3e-network/intent-solver/internal/settlement"
	"github.com/r3e-network/intent-solver/internal/settlement/oracle"
	"github.com/r3e-network/intent-solver/internal/storage"
	"github.com/r3e-network/intent-solver/internal/storage/memory"
	"github.com/r3e-network/intent-solver/internal/storage/postgres"
	"github.com/r3e-network/intent-solver/internal/storage/redisstore"
	"github.com/r3e-network/intent-solver/pkg/logger"
)

func main() {
	configPath := flag.String("config", "solver.toml", "path to the TOML configuration file")
	envPath := flag.String("env", ".env", "optional .env file loaded before the TOML config")
	migrateOnly := flag.Bool("migrate", false, "apply storage migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)

	if *migrateOnly {
		if cfg.Storage.Backend != "postgres" {
			fmt.Fprintln(os.Stderr, "-migrate only applies to the postgres backend")
			os.Exit(1)
		}
		ctx := context.Background()
		db, err := postgres.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.ApplyMigrations(ctx, db); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
		os.Exit(0)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("solver exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	acct, err := buildAccount(ctx, cfg.Account)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}

	providers, err := buildDeliveryProviders(cfg.Delivery)
	if err != nil {
		return fmt.Errorf("delivery: %w", err)
	}
	deliverySvc := delivery.New(acct, providers...)

	orderRegistry, err := buildOrderRegistry(cfg.Order)
	if err != nil {
		return fmt.Errorf("order: %w", err)
	}

	settlementRegistry, err := buildSettlementRegistry(cfg.Settlement)
	if err != nil {
		return fmt.Errorf("settlement: %w", err)
	}

	sources, err := buildDiscoverySources(cfg.Discovery)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	m := metrics.New()

	eng := engine.New(
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithStorage(store),
		engine.WithAccount(acct),
		engine.WithDelivery(deliverySvc),
		engine.WithOrderRegistry(orderRegistry),
		engine.WithSettlementRegistry(settlementRegistry),
		engine.WithMinConfirmations(cfg.Delivery.MinConfirmations),
	)

	discoverySvc := discovery.New(log, sources...)

	manager := system.NewManager()
	if err := manager.Register(eng); err != nil {
		return err
	}
	if err := manager.Register(discoveryService{discoverySvc, eng.Intake()}); err != nil {
		return err
	}

	log.WithField("solver_id", cfg.Solver.ID).Info("starting intent solver")
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return manager.Stop(stopCtx)
}

// discoveryService adapts discovery.Service (which takes its sink as an
// argument to StartAll rather than at construction) into a system.Service
// so it can be registered on the same manager as the Engine.
type discoveryService struct {
	svc  *discovery.Service
	sink chan<- domainintent.Intent
}

func (d discoveryService) Name() string { return "discovery" }
func (d discoveryService) Start(ctx context.Context) error {
	return d.svc.StartAll(ctx, d.sink)
}
func (d discoveryService) Stop(ctx context.Context) error {
	return d.svc.StopAll(ctx)
}

func buildStorage(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(), nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.ApplyMigrations(ctx, db); err != nil {
			return nil, err
		}
		return postgres.New(db), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.DSN)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)
		return redisstore.New(client, "intent-solver:"), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func buildAccount(ctx context.Context, cfg config.AccountConfig) (account.Account, error) {
	switch cfg.Provider {
	case "localkey":
		return localkey.NewFromHex(cfg.PrivateKeyHex)
	case "kms":
		return kms.Dial(ctx, kms.Config{
			VaultURL:   cfg.VaultURL,
			KeyName:    cfg.KeyName,
			KeyVersion: cfg.KeyVersion,
			Address:    cfg.Address,
		})
	default:
		return nil, fmt.Errorf("unknown account provider %q", cfg.Provider)
	}
}

func buildDeliveryProviders(cfg config.DeliveryConfig) ([]delivery.Provider, error) {
	var providers []delivery.Provider
	for name, chainCfg := range cfg.Chains {
		switch chainCfg.Kind {
		case "jsonrpc", "":
			providers = append(providers, jsonrpc.New(jsonrpc.Config{
				ChainID:           chainCfg.ChainID,
				RPCURL:            chainCfg.RPCURL,
				RequestsPerSecond: chainCfg.RequestsPerSecond,
				PollInterval:      config.PollInterval(chainCfg.PollIntervalMS, 3*time.Second),
			}))
		case "neo":
			// neo.New dials immediately, so it needs a context; startup is
			// the only place that context comes from here.
			p, err := neo.New(context.Background(), neo.Config{
				ChainID:      chainCfg.ChainID,
				RPCURL:       chainCfg.RPCURL,
				PollInterval: config.PollInterval(chainCfg.PollIntervalMS, 5*time.Second),
			})
			if err != nil {
				return nil, fmt.Errorf("delivery.chains.%s: %w", name, err)
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("delivery.chains.%s: unknown kind %q", name, chainCfg.Kind)
		}
	}
	return providers, nil
}

func buildOrderRegistry(cfg config.OrderConfig) (*ordersvc.Registry, error) {
	reg := ordersvc.NewRegistry()
	for name, standardCfg := range cfg.Implementations {
		switch name {
		case eip7683.StandardName:
			reg.Register(eip7683.New(eip7683.Config{
				EscrowAddress:   standardCfg.EscrowAddress,
				SolverAddress:   standardCfg.SolverAddress,
				MinOutputAmount: standardCfg.MinOutputAmount,
			}))
		default:
			return nil, fmt.Errorf("order.implementations.%s: unknown standard", name)
		}
	}

	switch cfg.ExecutionStrategy.StrategyType {
	case "capprofit", "":
		strat, err := capprofit.New(capprofit.Config{
			MaxGasPriceWei: cfg.ExecutionStrategy.MaxGasPriceWei,
			DeferDuration:  time.Duration(cfg.ExecutionStrategy.DeferSeconds) * time.Second,
			MinProfitWei:   cfg.ExecutionStrategy.MinProfitWei,
		})
		if err != nil {
			return nil, err
		}
		reg.SetStrategy(strat)
	case "script":
		reg.SetStrategy(script.New(script.Config{Source: cfg.ExecutionStrategy.ScriptSource}))
	default:
		return nil, fmt.Errorf("order.execution_strategy: unknown strategy_type %q", cfg.ExecutionStrategy.StrategyType)
	}

	return reg, nil
}

func buildSettlementRegistry(cfg map[string]config.SettlementStandard) (*settlementsvc.Registry, error) {
	reg := settlementsvc.NewRegistry()
	for name, standardCfg := range cfg {
		kind := standardCfg.Kind
		if kind == "" {
			kind = oracle.StandardName
		}
		switch kind {
		case oracle.StandardName:
			// name is the order standard tag (e.g. "eip7683") this
			// section configures settlement for; it is unrelated to
			// oracle.StandardName, which only identifies the
			// implementation kind selected above.
			reg.Register(name, oracle.New(oracle.Config{
				Endpoint:      standardCfg.OracleEndpoint,
				PollInterval:  config.PollInterval(standardCfg.PollIntervalMS, 5*time.Second),
				DisputeWindow: time.Duration(standardCfg.DisputeWindowSecs) * time.Second,
			}))
		default:
			return nil, fmt.Errorf("settlement.implementations.%s: unknown kind %q", name, kind)
		}
	}
	return reg, nil
}

func buildDiscoverySources(cfg map[string]config.DiscoverySource) ([]discovery.Source, error) {
	var sources []discovery.Source
	for name, srcCfg := range cfg {
		switch srcCfg.Kind {
		case "logscan":
			src, err := logscan.New(logscan.Config{
				SourceName:   name,
				RPCURL:       srcCfg.RPCURL,
				EscrowAddress: srcCfg.EscrowAddress,
				Standard:     srcCfg.Standard,
				PollInterval: config.PollInterval(srcCfg.PollIntervalMS, 5*time.Second),
			})
			if err != nil {
				return nil, fmt.Errorf("discovery_sources.%s: %w", name, err)
			}
			sources = append(sources, src)
		case "cron":
			src, err := cron.New(cron.Config{
				SourceName: name,
				FeedURL:    srcCfg.FeedURL,
				Standard:   srcCfg.Standard,
				Schedule:   srcCfg.Schedule,
			})
			if err != nil {
				return nil, fmt.Errorf("discovery_sources.%s: %w", name, err)
			}
			sources = append(sources, src)
		default:
			return nil, fmt.Errorf("discovery_sources.%s: unknown kind %q", name, srcCfg.Kind)
		}
	}
	return sources, nil
}
