package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"swapbook/crypto"
)

// AssetConfig declares one tradable asset and its decimal scale. The scale is
// per-asset; there is no global precision.
type AssetConfig struct {
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

type Config struct {
	RPCAddress       string        `toml:"RPCAddress"`
	DataDir          string        `toml:"DataDir"`
	NetworkName      string        `toml:"NetworkName"`
	AuthorityAddress string        `toml:"AuthorityAddress"`
	AuthTokenEnv     string        `toml:"AuthTokenEnv"`
	LogLevel         string        `toml:"LogLevel"`
	PausedModules    []string      `toml:"PausedModules"`
	Assets           []AssetConfig `toml:"Assets"`
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

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "swapbook-local"
	}
	if strings.TrimSpace(cfg.AuthTokenEnv) == "" {
		cfg.AuthTokenEnv = "SWAPBOOK_RPC_TOKEN"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settlement authority identity and the asset registry.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AuthorityAddress) == "" {
		return fmt.Errorf("config: AuthorityAddress is required")
	}
	if _, err := crypto.DecodeAddress(c.AuthorityAddress); err != nil {
		return fmt.Errorf("config: invalid AuthorityAddress: %w", err)
	}
	if len(c.Assets) < 2 {
		return fmt.Errorf("config: at least two assets must be declared")
	}
	seen := make(map[string]bool, len(c.Assets))
	for _, asset := range c.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(asset.Symbol))
		if symbol == "" {
			return fmt.Errorf("config: asset symbol must not be empty")
		}
		if seen[symbol] {
			return fmt.Errorf("config: duplicate asset %s", symbol)
		}
		seen[symbol] = true
		// 10^decimals must stay well inside uint64 price arithmetic.
		if asset.Decimals > 18 {
			return fmt.Errorf("config: asset %s decimals %d out of range", symbol, asset.Decimals)
		}
	}
	return nil
}

// createDefault creates and saves a default configuration file. The authority
// identity is freshly generated so a new deployment never starts with a
// well-known signer.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:       ":8645",
		DataDir:          "./swapbook-data",
		NetworkName:      "swapbook-local",
		AuthorityAddress: key.PubKey().Address().String(),
		AuthTokenEnv:     "SWAPBOOK_RPC_TOKEN",
		LogLevel:         "info",
		PausedModules:    []string{},
		Assets: []AssetConfig{
			{Symbol: "AAA", Decimals: 6},
			{Symbol: "BBB", Decimals: 6},
		},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
