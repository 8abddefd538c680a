// Package config aggregates the environment-provided service settings and
// the per-deployment rarity tier table.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joeshaw/envdecode"
)

// TierEntry is one row of the deployment's rarity table.
type TierEntry struct {
	MetadataURI  string `json:"metadataUri"`
	RewardTokens int64  `json:"rewardTokens"`
}

// Config is the full service configuration.
type Config struct {
	HTTP struct {
		Port           int `env:"API_HTTP_PORT,default=3001"`
		RateLimitRPS   int `env:"RATE_LIMIT_RPS,default=5"`
		RateLimitBurst int `env:"RATE_LIMIT_BURST,default=10"`
	}

	Chain struct {
		RPCURL        string        `env:"CHAIN_RPC_URL,default=http://localhost:8545"`
		ChainID       int64         `env:"CHAIN_ID,default=84532"`
		PrivateKey    string        `env:"CHAIN_PRIVATE_KEY"`
		NFTContract   string        `env:"NFT_CONTRACT_ADDRESS"`
		TokenContract string        `env:"TOKEN_CONTRACT_ADDRESS"`
		RPCTimeout       time.Duration `env:"CHAIN_RPC_TIMEOUT,default=15s"`
		InclusionTimeout time.Duration `env:"CHAIN_INCLUSION_TIMEOUT,default=2m"`
	}

	Quiz struct {
		TokenSecret string        `env:"QUIZ_TOKEN_SECRET,required"`
		TokenTTL    time.Duration `env:"QUIZ_TOKEN_TTL,default=2m"`
	}

	Rewards struct {
		Enabled       bool `env:"SEND_REWARD_TOKENS,default=false"`
		TokenDecimals int  `env:"REWARD_TOKEN_DECIMALS,default=18"`
	}

	Telegram struct {
		BotToken    string `env:"TELEGRAM_BOT_TOKEN"`
		ChatID      string `env:"TELEGRAM_CHAT_ID"`
		VideoURL    string `env:"TELEGRAM_VIDEO_URL"`
		ExplorerURL string `env:"TX_EXPLORER_URL,default=https://basescan.org/tx/"`
	}

	Replay struct {
		PostgresDSN string        `env:"REPLAY_POSTGRES_DSN"`
		FilePath    string        `env:"REPLAY_STORE_PATH"`
		Window      time.Duration `env:"REPLAY_WINDOW,default=10m"`
	}

	TiersPath string `env:"TIERS_PATH,default=tiers.json"`

	// Tiers is loaded from TiersPath, not from the environment.
	Tiers map[string]TierEntry
}

// Load decodes the environment and reads the tier table.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	tiers, err := loadTiers(cfg.TiersPath)
	if err != nil {
		return nil, fmt.Errorf("load tier table: %w", err)
	}
	cfg.Tiers = tiers

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadTiers(path string) (map[string]TierEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tiers map[string]TierEntry
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("tier table %s is empty", path)
	}
	return tiers, nil
}

func (c *Config) validate() error {
	// Contract addresses only matter once a signing key is configured;
	// without one the service runs against the fake chain client.
	if c.Chain.PrivateKey != "" {
		if !common.IsHexAddress(c.Chain.NFTContract) {
			return fmt.Errorf("NFT_CONTRACT_ADDRESS %q is not a valid address", c.Chain.NFTContract)
		}
		if c.Rewards.Enabled && !common.IsHexAddress(c.Chain.TokenContract) {
			return fmt.Errorf("TOKEN_CONTRACT_ADDRESS %q is not a valid address", c.Chain.TokenContract)
		}
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}
	for name, entry := range c.Tiers {
		if entry.MetadataURI == "" {
			return fmt.Errorf("tier %q has no metadata uri", name)
		}
		if entry.RewardTokens < 0 {
			return fmt.Errorf("tier %q has a negative reward", name)
		}
	}
	return nil
}
