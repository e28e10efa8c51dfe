package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, uint64(10), cfg.BlockMargin)
	require.Equal(t, uint64(2000), cfg.BatchSize)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	require.Equal(t, 15*time.Second, cfg.PollInterval)
	require.Empty(t, cfg.Networks)
}

func TestLoadNetworks(t *testing.T) {
	path := writeConfigFile(t, `
http-addr: ":9090"
block-margin: 25
networks:
  sepolia:
    chain-id: 11155111
    rpc-url: wss://sepolia.example.com
    contract-address: "0x00000000000000000000000000000000000000aa"
    nft-contract-address: "0x00000000000000000000000000000000000000bb"
    name: Sepolia
    symbol: ETH
    block-explorer: https://sepolia.etherscan.io
    nordit-support: true
    supported-tokens:
      - USDT
  kaia:
    chain-id: 8217
    rpc-url: https://kaia.example.com
    contract-address: "0x00000000000000000000000000000000000000cc"
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, uint64(25), cfg.BlockMargin)
	require.Len(t, cfg.Networks, 2)

	sepolia := cfg.Networks["sepolia"]
	require.Equal(t, "sepolia", sepolia.Key)
	require.Equal(t, uint64(11155111), sepolia.ChainID)
	require.Equal(t, "wss://sepolia.example.com", sepolia.RPCURL)
	require.Equal(t, "0x00000000000000000000000000000000000000bb", sepolia.NFTContractAddress)
	require.True(t, sepolia.NorditSupport)
	require.Equal(t, []string{"USDT"}, sepolia.SupportedTokens)

	kaia := cfg.Networks["kaia"]
	require.Equal(t, "kaia", kaia.Key)
	require.Equal(t, uint64(8217), kaia.ChainID)
	require.Empty(t, kaia.NFTContractAddress)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FORTUNE_HTTP_ADDR", ":7070")
	path := writeConfigFile(t, "")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.HTTPAddr)
}
