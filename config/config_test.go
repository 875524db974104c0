package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"swapbook/crypto"
)

func testAuthority(t *testing.T) string {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.PubKey().Address().String()
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, ":8645", cfg.RPCAddress)
	require.Equal(t, "swapbook-local", cfg.NetworkName)
	require.Equal(t, "SWAPBOOK_RPC_TOKEN", cfg.AuthTokenEnv)
	require.Equal(t, "info", cfg.LogLevel)
	require.Len(t, cfg.Assets, 2)
	require.NoError(t, cfg.Validate())

	// A generated default must not ship a well-known authority: two fresh
	// files disagree.
	other, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	require.NotEqual(t, cfg.AuthorityAddress, other.AuthorityAddress)
}

func TestLoadExistingConfig(t *testing.T) {
	authority := testAuthority(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
RPCAddress = ":9000"
DataDir = "./data"
AuthorityAddress = "` + authority + `"

[[Assets]]
Symbol = "AAA"
Decimals = 6

[[Assets]]
Symbol = "BBB"
Decimals = 0
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.RPCAddress)
	require.Equal(t, authority, cfg.AuthorityAddress)
	require.Equal(t, "swapbook-local", cfg.NetworkName, "missing NetworkName falls back to default")
	require.Equal(t, "SWAPBOOK_RPC_TOKEN", cfg.AuthTokenEnv)
	require.Equal(t, "info", cfg.LogLevel, "missing LogLevel falls back to default")
	require.Equal(t, uint8(0), cfg.Assets[1].Decimals)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	authority := testAuthority(t)
	base := func() *Config {
		return &Config{
			AuthorityAddress: authority,
			Assets: []AssetConfig{
				{Symbol: "AAA", Decimals: 6},
				{Symbol: "BBB", Decimals: 6},
			},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing authority", func(c *Config) { c.AuthorityAddress = "" }},
		{"malformed authority", func(c *Config) { c.AuthorityAddress = "sbk1notanaddress" }},
		{"single asset", func(c *Config) { c.Assets = c.Assets[:1] }},
		{"duplicate assets", func(c *Config) { c.Assets[1].Symbol = "aaa" }},
		{"empty symbol", func(c *Config) { c.Assets[0].Symbol = "  " }},
		{"decimals out of range", func(c *Config) { c.Assets[0].Decimals = 19 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, base().Validate())
}
