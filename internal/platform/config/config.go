package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBadger   = "badger"

	LedgerMemory = "memory"
	LedgerERC20  = "erc20"

	AuthSignature = "signature"
	AuthHeader    = "header"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string

	StoreDriver string
	PostgresDSN string
	BadgerPath  string

	DropID    string
	DropOwner string

	LedgerDriver         string
	EthRPCURL            string
	EthChainID           int64
	EthPrivateKey        string
	LedgerBreakerTimeout time.Duration
	// LedgerConfirmTimeout bounds the wait for a broadcast transfer's receipt.
	// A transfer still unmined after it stays recorded as claimed.
	LedgerConfirmTimeout time.Duration
	// MemoryLedgerSupply is minted to the drop owner whenever a token is
	// bound while LEDGER_DRIVER=memory. Empty disables minting.
	MemoryLedgerSupply string

	AuthMode           string
	ClaimRatePerSecond float64
	ClaimRateBurst     int

	KafkaBrokers       []string
	OutboxPollInterval time.Duration
	EnableOutboxRelay  bool
}

// Load reads the process environment. A .env file in the working directory,
// or the file named by ENV_FILE, is applied first without overriding
// variables that are already set.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}

	cfg := Config{
		ServiceName: envString("SERVICE_NAME", "merkledrop"),
		HTTPPort:    envString("HTTP_PORT", "8080"),

		StoreDriver: strings.ToLower(envString("STORE_DRIVER", StoreMemory)),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		BadgerPath:  envString("BADGER_PATH", "data/badger"),

		DropID:    envString("DROP_ID", "default"),
		DropOwner: strings.TrimSpace(os.Getenv("DROP_OWNER")),

		LedgerDriver:         strings.ToLower(envString("LEDGER_DRIVER", LedgerMemory)),
		EthRPCURL:            os.Getenv("ETH_RPC_URL"),
		EthPrivateKey:        strings.TrimSpace(os.Getenv("ETH_PRIVATE_KEY")),
		LedgerBreakerTimeout: envDuration("LEDGER_BREAKER_TIMEOUT", 30*time.Second),
		LedgerConfirmTimeout: envDuration("LEDGER_CONFIRM_TIMEOUT", 2*time.Minute),
		MemoryLedgerSupply:   strings.TrimSpace(os.Getenv("MEMORY_LEDGER_SUPPLY")),

		AuthMode:       strings.ToLower(envString("AUTH_MODE", AuthSignature)),
		ClaimRateBurst: envInt("CLAIM_RATE_BURST", 3),

		KafkaBrokers:       brokers,
		OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		EnableOutboxRelay:  envBool("ENABLE_OUTBOX_RELAY", true),
	}

	chainID, err := strconv.ParseInt(envString("ETH_CHAIN_ID", "31337"), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("ETH_CHAIN_ID: %w", err)
	}
	cfg.EthChainID = chainID

	rate, err := strconv.ParseFloat(envString("CLAIM_RATE_PER_SECOND", "1"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("CLAIM_RATE_PER_SECOND: %w", err)
	}
	cfg.ClaimRatePerSecond = rate

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver selections and the settings each driver needs.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("POSTGRES_DSN is required for STORE_DRIVER=postgres")
		}
	case StoreBadger:
		if strings.TrimSpace(c.BadgerPath) == "" {
			return errors.New("BADGER_PATH is required for STORE_DRIVER=badger")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.LedgerDriver {
	case LedgerMemory:
	case LedgerERC20:
		if strings.TrimSpace(c.EthRPCURL) == "" || c.EthPrivateKey == "" {
			return errors.New("ETH_RPC_URL and ETH_PRIVATE_KEY are required for LEDGER_DRIVER=erc20")
		}
	default:
		return fmt.Errorf("unsupported LEDGER_DRIVER %q", c.LedgerDriver)
	}

	switch c.AuthMode {
	case AuthSignature, AuthHeader:
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", c.AuthMode)
	}

	if c.ClaimRatePerSecond <= 0 || c.ClaimRateBurst <= 0 {
		return errors.New("CLAIM_RATE_PER_SECOND and CLAIM_RATE_BURST must be positive")
	}
	return nil
}

// ValidateWorker checks the settings of the standalone outbox worker. The
// worker and the API share one environment and exactly one of them may relay
// the outbox: two relays would split each event between their in-process
// buses, so API-side consumers would miss what the worker delivered.
func (c Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.StoreDriver != StorePostgres {
		return fmt.Errorf("worker requires STORE_DRIVER=postgres, got %q", c.StoreDriver)
	}
	if c.EnableOutboxRelay {
		return errors.New("worker requires ENABLE_OUTBOX_RELAY=false; the API process relays the outbox otherwise")
	}
	return nil
}

func loadDotEnv() error {
	path := envString("ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func envString(name string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(os.Getenv(name)))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
