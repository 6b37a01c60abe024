package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(9745), cfg.Network.ChainID)
	assert.Equal(t, "XPL-USDT", cfg.PriceFeed.InstID)
	assert.Equal(t, []int{25, 50, 75, 100}, cfg.Trading.SellPresets)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
polling:
  tokenStateInterval: 5000
trading:
  maxSlippage: "30"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("RPC_ENDPOINTS", " https://a.example , ,https://b.example")
	t.Setenv("STAKING_ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("POLL_PAUSE_WHEN_OFFLINE", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Polling.TokenStateInterval)
	assert.Equal(t, 10000, cfg.Polling.PriceInterval)
	assert.Equal(t, "30", cfg.Trading.MaxSlippage)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Network.RPCEndpoints)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", cfg.Contracts.Staking)
	assert.False(t, cfg.Polling.PauseWhenOffline)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"no rpc":           func(c *Config) { c.Network.RPCEndpoints = nil },
		"zero chain":       func(c *Config) { c.Network.ChainID = 0 },
		"bad address":      func(c *Config) { c.Contracts.Router = "0x1234" },
		"zero address":     func(c *Config) { c.Contracts.WETH = "0x0000000000000000000000000000000000000000" },
		"zero interval":    func(c *Config) { c.Polling.QuoteInterval = 0 },
		"negative retries": func(c *Config) { c.Polling.MaxRetries = -1 },
		"zero batch":       func(c *Config) { c.Metadata.BatchSize = 0 },
		"zero deadline":    func(c *Config) { c.Trading.DeadlineMinutes = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAddresses(t *testing.T) {
	addrs := DefaultContracts().Addresses()
	assert.Equal(t, "0xcA11bde05977b3631167028862bE2a173976CA11", addrs.Multicall3.Hex())
}
