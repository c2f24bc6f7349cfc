package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"vaultcore/crypto"
)

// PoolConfig declares an asset pairing the daemon initialises at startup.
// Initialisation is idempotent: pairings that already exist are left alone.
type PoolConfig struct {
	Asset       string `toml:"Asset"`
	RewardAsset string `toml:"RewardAsset"`
}

// GenesisBalance seeds an account balance on first start. Amount is a decimal
// string so asset base units survive TOML's integer range.
type GenesisBalance struct {
	Address string `toml:"Address"`
	Asset   string `toml:"Asset"`
	Amount  string `toml:"Amount"`
}

type Config struct {
	RPCAddress    string           `toml:"RPCAddress"`
	DataDir       string           `toml:"DataDir"`
	LogLevel      string           `toml:"LogLevel"`
	PausedModules []string         `toml:"PausedModules"`
	Pools         []PoolConfig     `toml:"pool"`
	Genesis       []GenesisBalance `toml:"genesis"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the declarative sections before any state is touched.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Pools))
	for i, pool := range c.Pools {
		asset := strings.TrimSpace(pool.Asset)
		reward := strings.TrimSpace(pool.RewardAsset)
		if asset == "" || reward == "" {
			return fmt.Errorf("config: pool %d missing asset pairing", i)
		}
		key := asset + "/" + reward
		if _, dup := seen[key]; dup {
			return fmt.Errorf("config: duplicate pool %q", key)
		}
		seen[key] = struct{}{}
	}
	for i, bal := range c.Genesis {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(bal.Address)); err != nil {
			return fmt.Errorf("config: genesis %d: %w", i, err)
		}
		if strings.TrimSpace(bal.Asset) == "" {
			return fmt.Errorf("config: genesis %d missing asset", i)
		}
		if _, err := bal.ParsedAmount(); err != nil {
			return fmt.Errorf("config: genesis %d: %w", i, err)
		}
	}
	return nil
}

// IsPaused satisfies the pause view consulted by the vault engine.
func (c *Config) IsPaused(module string) bool {
	for _, paused := range c.PausedModules {
		if strings.EqualFold(strings.TrimSpace(paused), module) {
			return true
		}
	}
	return false
}

// ParsedAmount returns the genesis amount as a non-negative big integer.
func (b GenesisBalance) ParsedAmount() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(b.Amount), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", b.Amount)
	}
	return amount, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./vault-data"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
