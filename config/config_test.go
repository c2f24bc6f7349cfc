package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultcore/crypto"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, "info", cfg.LogLevel)
	require.FileExists(t, path)

	// A second load reads the file it just wrote.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, again.RPCAddress)
}

func TestLoadParsesPoolsAndGenesis(t *testing.T) {
	user := crypto.NewAddress(crypto.VaultPrefix, make([]byte, 20))
	path := writeConfig(t, `
RPCAddress = "0.0.0.0:9000"
LogLevel = "debug"

[[pool]]
Asset = "usdn"
RewardAsset = "rwd"

[[genesis]]
Address = "`+user.String()+`"
Asset = "usdn"
Amount = "1000000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Len(t, cfg.Pools, 1)
	require.Equal(t, "usdn", cfg.Pools[0].Asset)
	require.Len(t, cfg.Genesis, 1)
	amount, err := cfg.Genesis[0].ParsedAmount()
	require.NoError(t, err)
	require.Equal(t, "1000000", amount.String())
}

func TestValidateRejectsDuplicatePools(t *testing.T) {
	cfg := &Config{Pools: []PoolConfig{
		{Asset: "usdn", RewardAsset: "rwd"},
		{Asset: "usdn", RewardAsset: "rwd"},
	}}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadGenesis(t *testing.T) {
	cfg := &Config{Genesis: []GenesisBalance{
		{Address: "garbage", Asset: "usdn", Amount: "10"},
	}}
	require.Error(t, cfg.Validate())

	user := crypto.NewAddress(crypto.VaultPrefix, make([]byte, 20))
	cfg = &Config{Genesis: []GenesisBalance{
		{Address: user.String(), Asset: "usdn", Amount: "-10"},
	}}
	require.Error(t, cfg.Validate())

	cfg = &Config{Genesis: []GenesisBalance{
		{Address: user.String(), Asset: "", Amount: "10"},
	}}
	require.Error(t, cfg.Validate())
}

func TestIsPaused(t *testing.T) {
	cfg := &Config{PausedModules: []string{" Vault "}}
	require.True(t, cfg.IsPaused("vault"))
	require.False(t, cfg.IsPaused("other"))
}
