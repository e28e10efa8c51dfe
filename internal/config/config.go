package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"fortunebridge/internal/model"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	HTTPAddr string
	PGDSN    string
	LogLevel string

	FortuneAPIURL string
	FortuneAPIKey string

	IPFSAPIKey    string
	IPFSAPISecret string
	IPFSGateway   string

	MinterPrivateKey string
	AssetBaseURL     string

	BlockMargin  uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	PollInterval time.Duration

	Networks map[string]model.NetworkConfig
}

// Load merges config file, environment variables, and flags into Config.
// Network definitions come from the config file's networks map.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FORTUNE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http-addr", ":8080")
	v.SetDefault("log-level", "info")
	v.SetDefault("fortune-api-url", "https://n8n.fortun3.guru/webhook-test/call-fortune")
	v.SetDefault("block-margin", uint64(10))
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("poll-interval", 15*time.Second)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var networks map[string]model.NetworkConfig
	if err := v.UnmarshalKey("networks", &networks); err != nil {
		return Config{}, fmt.Errorf("parse networks: %w", err)
	}
	for key, network := range networks {
		network.Key = key
		networks[key] = network
	}

	cfg := Config{
		HTTPAddr:         v.GetString("http-addr"),
		PGDSN:            v.GetString("pg-dsn"),
		LogLevel:         v.GetString("log-level"),
		FortuneAPIURL:    v.GetString("fortune-api-url"),
		FortuneAPIKey:    v.GetString("fortune-api-key"),
		IPFSAPIKey:       v.GetString("ipfs-api-key"),
		IPFSAPISecret:    v.GetString("ipfs-api-secret"),
		IPFSGateway:      v.GetString("ipfs-gateway"),
		MinterPrivateKey: v.GetString("minter-private-key"),
		AssetBaseURL:     v.GetString("asset-base-url"),
		BlockMargin:      v.GetUint64("block-margin"),
		BatchSize:        v.GetUint64("batch-size"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		PollInterval:     v.GetDuration("poll-interval"),
		Networks:         networks,
	}

	return cfg, nil
}
