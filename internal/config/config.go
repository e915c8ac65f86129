package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds the per-deployment parameters for the delegation engine.
// Paymaster, token and implementation addresses are fixed per environment
// and injected here rather than discovered on-chain.
type Config struct {
	Stage string

	// Chain access
	ChainID int64
	RPCURL  string

	// Registry deployment
	RegistryAddress common.Address
	// RegistryImplementation is the TBA implementation minted entries must
	// carry to be treated as fully verified.
	RegistryImplementation common.Address
	// DeprecatedImplementations are older TBA implementations that still
	// resolve but disable funding and gasless features.
	DeprecatedImplementations []common.Address

	// Gas sponsorship
	PaymasterAddress common.Address
	USDCTokenAddress common.Address

	// Custody service (local wallet API)
	CustodyBaseURL string
	CustodyAPIKey  string

	// Owner EOA key used to sign execute transactions. Hex, no 0x prefix.
	OwnerPrivateKey string

	// Audit storage. Empty disables the audit log.
	DatabaseURL string

	// SettleDelay is how long to wait after a confirmed receipt before
	// re-reading chain state, to tolerate indexer lag.
	SettleDelay time.Duration

	// Funding minimums
	MinOperatorEthWei  *big.Int
	MinOperatorUSDC    *big.Int
	MinHotWalletEthWei *big.Int
}

// Default funding thresholds. USDC uses 6 decimals.
var (
	defaultMinOperatorEthWei  = big.NewInt(1_000_000_000_000_000) // 0.001 ETH
	defaultMinOperatorUSDC    = big.NewInt(5_000_000)             // 5 USDC
	defaultMinHotWalletEthWei = big.NewInt(500_000_000_000_000)   // 0.0005 ETH
)

// DefaultSettleDelay is the fixed wait applied after confirmation before
// the chain is re-read. The registry read path can be served by an index
// that lags the canonical chain state.
const DefaultSettleDelay = 2 * time.Second

// Load reads the configuration from the environment. Addresses are
// validated eagerly so a misconfigured deployment fails at startup, not on
// the first transaction.
func Load() (*Config, error) {
	cfg := &Config{
		Stage:              getEnv("STAGE", "local"),
		RPCURL:             os.Getenv("CHAIN_RPC_URL"),
		CustodyBaseURL:     getEnv("CUSTODY_BASE_URL", "http://localhost:9100"),
		CustodyAPIKey:      os.Getenv("CUSTODY_API_KEY"),
		OwnerPrivateKey:    os.Getenv("OWNER_PRIVATE_KEY"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SettleDelay:        DefaultSettleDelay,
		MinOperatorEthWei:  defaultMinOperatorEthWei,
		MinOperatorUSDC:    defaultMinOperatorUSDC,
		MinHotWalletEthWei: defaultMinHotWalletEthWei,
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("CHAIN_RPC_URL environment variable is required")
	}

	var err error
	if cfg.ChainID, err = parseInt64(getEnv("CHAIN_ID", "1")); err != nil {
		return nil, fmt.Errorf("invalid CHAIN_ID: %w", err)
	}

	if cfg.RegistryAddress, err = parseAddress("REGISTRY_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.RegistryImplementation, err = parseAddress("REGISTRY_IMPLEMENTATION"); err != nil {
		return nil, err
	}
	if cfg.PaymasterAddress, err = parseAddress("PAYMASTER_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.USDCTokenAddress, err = parseAddress("USDC_TOKEN_ADDRESS"); err != nil {
		return nil, err
	}

	// Older deployments used a previous implementation; entries on it are
	// still readable but cannot use gasless features.
	for _, raw := range splitList(os.Getenv("DEPRECATED_IMPLEMENTATIONS")) {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("DEPRECATED_IMPLEMENTATIONS contains invalid address %q", raw)
		}
		cfg.DeprecatedImplementations = append(cfg.DeprecatedImplementations, common.HexToAddress(raw))
	}

	if raw := os.Getenv("SETTLE_DELAY_MS"); raw != "" {
		ms, err := parseInt64(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SETTLE_DELAY_MS: %w", err)
		}
		cfg.SettleDelay = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

func parseAddress(envVar string) (common.Address, error) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return common.Address{}, fmt.Errorf("%s environment variable is required", envVar)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s is not a valid address: %s", envVar, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseInt64(raw string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &v)
	return v, err
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
