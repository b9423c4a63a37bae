// Package config loads the solver's TOML configuration document (§6):
// parsed with go-toml/v2, overridden by environment variables decoded with
// envdecode, with an optional .env file loaded first via godotenv —
// the same layered env-then-file precedence the teacher's internal/config
// uses, adapted to a structured TOML document since §6 requires named
// sections rather than flat MARBLE_ENV-style keys.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/r3e-network/intent-solver/pkg/logger"
)

// Config is the root configuration document.
type Config struct {
	Solver     SolverConfig                 `toml:"solver"`
	Logging    logger.LoggingConfig         `toml:"logging"`
	Storage    StorageConfig                `toml:"storage"`
	Account    AccountConfig                `toml:"account"`
	Delivery   DeliveryConfig               `toml:"delivery"`
	Discovery  map[string]DiscoverySource   `toml:"discovery_sources"`
	Order      OrderConfig                  `toml:"order"`
	Settlement map[string]SettlementStandard `toml:"settlement_implementations"`
}

// SolverConfig is `[solver]`.
type SolverConfig struct {
	ID string `toml:"id" env:"SOLVER_ID"`
}

// StorageConfig is `[storage]`.
type StorageConfig struct {
	Backend string `toml:"backend" env:"SOLVER_STORAGE_BACKEND"`
	DSN     string `toml:"dsn" env:"SOLVER_STORAGE_DSN"`
}

// AccountConfig is `[account]`.
type AccountConfig struct {
	Provider       string `toml:"provider" env:"SOLVER_ACCOUNT_PROVIDER"`
	PrivateKeyHex  string `toml:"private_key" env:"SOLVER_ACCOUNT_PRIVATE_KEY"`
	VaultURL       string `toml:"vault_url" env:"SOLVER_ACCOUNT_VAULT_URL"`
	KeyName        string `toml:"key_name" env:"SOLVER_ACCOUNT_KEY_NAME"`
	KeyVersion     string `toml:"key_version" env:"SOLVER_ACCOUNT_KEY_VERSION"`
	Address        string `toml:"address" env:"SOLVER_ACCOUNT_ADDRESS"`
}

// DeliveryConfig is `[delivery]` plus its per-chain provider subsections.
type DeliveryConfig struct {
	MinConfirmations uint64                    `toml:"min_confirmations"`
	Chains           map[string]ChainProvider `toml:"chains"`
}

// ChainProvider is one `[delivery.chains.<name>]` subsection.
type ChainProvider struct {
	Kind              string  `toml:"kind"` // "jsonrpc" | "neo"
	ChainID           string  `toml:"chain_id"`
	RPCURL            string  `toml:"rpc_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	PollIntervalMS    int64   `toml:"poll_interval_ms"`
}

// DiscoverySource is one `[discovery.sources.<name>]` subsection.
type DiscoverySource struct {
	Kind           string `toml:"kind"` // "logscan" | "cron"
	RPCURL         string `toml:"rpc_url"`
	EscrowAddress  string `toml:"escrow_address"`
	Standard       string `toml:"standard"`
	FeedURL        string `toml:"feed_url"`
	Schedule       string `toml:"schedule"`
	PollIntervalMS int64  `toml:"poll_interval_ms"`
}

// OrderConfig is `[order.implementations.<standard>]` plus
// `[order.execution_strategy]`.
type OrderConfig struct {
	Implementations  map[string]OrderStandard `toml:"implementations"`
	ExecutionStrategy StrategyConfig          `toml:"execution_strategy"`
}

// OrderStandard is one `[order.implementations.<standard>]` subsection.
type OrderStandard struct {
	EscrowAddress   string `toml:"escrow_address"`
	SolverAddress   string `toml:"solver_address"`
	MinOutputAmount string `toml:"min_output_amount"`
}

// StrategyConfig is `[order.execution_strategy]`.
type StrategyConfig struct {
	StrategyType    string `toml:"strategy_type"` // "capprofit" | "script"
	MaxGasPriceWei  string `toml:"max_gas_price_wei"`
	DeferSeconds    int64  `toml:"defer_seconds"`
	MinProfitWei    string `toml:"min_profit_wei"`
	ScriptSource    string `toml:"script_source"`
}

// SettlementStandard is one `[settlement.implementations.<standard>]`
// subsection. The subsection key (e.g. "eip7683") is the order standard
// tag it is registered under; Kind selects which Settlement
// implementation backs it and defaults to "oracle" when unset, since
// that is the only implementation this solver ships today.
type SettlementStandard struct {
	Kind                string `toml:"kind"`
	OracleEndpoint      string `toml:"oracle_endpoint"`
	PollIntervalMS      int64  `toml:"poll_interval_ms"`
	DisputeWindowSecs   int64  `toml:"dispute_window_seconds"`
}

// Error is a fatal configuration problem, collecting the first missing or
// invalid field found, following the teacher's Config.Validate() idiom of
// surfacing one typed error before startup proceeds.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Load reads dotenvPath (if non-empty and present), parses tomlPath, then
// applies environment variable overrides via envdecode, and validates the
// result.
func Load(tomlPath, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			if err := godotenv.Load(dotenvPath); err != nil {
				return nil, &Error{Field: "dotenv", Msg: err.Error()}
			}
		}
	}

	raw, err := os.ReadFile(tomlPath)
	if err != nil {
		return nil, &Error{Field: "file", Msg: err.Error()}
	}

	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, &Error{Field: "toml", Msg: err.Error()}
	}

	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, &Error{Field: "env", Msg: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate collects the first production-fatal condition found, per §6:
// "missing required keys are a fatal configuration error on startup."
func (c *Config) Validate() error {
	if c.Solver.ID == "" {
		return &Error{Field: "solver.id", Msg: "required"}
	}
	switch c.Storage.Backend {
	case "memory", "postgres", "redis":
	case "":
		return &Error{Field: "storage.backend", Msg: "required"}
	default:
		return &Error{Field: "storage.backend", Msg: "unknown backend " + c.Storage.Backend}
	}
	if c.Storage.Backend != "memory" && c.Storage.DSN == "" {
		return &Error{Field: "storage.dsn", Msg: "required for backend " + c.Storage.Backend}
	}
	switch c.Account.Provider {
	case "localkey", "kms":
	case "":
		return &Error{Field: "account.provider", Msg: "required"}
	default:
		return &Error{Field: "account.provider", Msg: "unknown provider " + c.Account.Provider}
	}
	if len(c.Delivery.Chains) == 0 {
		return &Error{Field: "delivery.chains", Msg: "at least one chain provider is required"}
	}
	for name, chainCfg := range c.Delivery.Chains {
		if chainCfg.RPCURL == "" {
			return &Error{Field: "delivery.chains." + name + ".rpc_url", Msg: "required"}
		}
		if chainCfg.ChainID == "" {
			return &Error{Field: "delivery.chains." + name + ".chain_id", Msg: "required"}
		}
	}
	if len(c.Discovery) == 0 {
		return &Error{Field: "discovery_sources", Msg: "at least one source is required"}
	}
	if len(c.Order.Implementations) == 0 {
		return &Error{Field: "order.implementations", Msg: "at least one standard is required"}
	}
	if c.Order.ExecutionStrategy.StrategyType == "" {
		return &Error{Field: "order.execution_strategy.strategy_type", Msg: "required"}
	}
	if len(c.Settlement) == 0 {
		return &Error{Field: "settlement_implementations", Msg: "at least one standard is required"}
	}
	return nil
}

// PollInterval converts a millisecond config field to a time.Duration,
// falling back to def when unset.
func PollInterval(ms int64, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
