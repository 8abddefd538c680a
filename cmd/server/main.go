package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"quizmint/internal/chain"
	"quizmint/internal/config"
	"quizmint/internal/idempotency"
	"quizmint/internal/minting"
	"quizmint/internal/notify"
	"quizmint/internal/quizgate"
	"quizmint/internal/server"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	store, err := buildReplayStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("replay store error")
	}

	chainCli, account, err := buildChain(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("chain client error")
	}

	policy, err := minting.NewPolicy(tierTable(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("tier table error")
	}

	var sink notify.Sink = notify.NopSink{}
	if cfg.Telegram.BotToken != "" {
		sink, err = notify.NewTelegramSink(notify.TelegramConfig{
			BotToken:    cfg.Telegram.BotToken,
			ChatID:      cfg.Telegram.ChatID,
			VideoURL:    cfg.Telegram.VideoURL,
			ExplorerURL: cfg.Telegram.ExplorerURL,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("notification sink error")
		}
	}

	orchestrator := minting.NewOrchestrator(chainCli, account, policy, sink, minting.Config{
		NFTContract:   common.HexToAddress(cfg.Chain.NFTContract),
		TokenContract: common.HexToAddress(cfg.Chain.TokenContract),
		SendRewards:   cfg.Rewards.Enabled,
		TokenDecimals: cfg.Rewards.TokenDecimals,
	}, log)

	gate := quizgate.NewGate(cfg.Quiz.TokenSecret, cfg.Quiz.TokenTTL)

	apiServer := server.NewServer(cfg, gate, orchestrator, store, chainCli, log)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Info().Err(err).Msg("server stopped")
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(ctx)
}

func buildReplayStore(cfg *config.Config) (idempotency.Store, error) {
	switch {
	case cfg.Replay.PostgresDSN != "":
		return idempotency.NewPostgresStore(context.Background(), cfg.Replay.PostgresDSN)
	case cfg.Replay.FilePath != "":
		return idempotency.NewFileStore(cfg.Replay.FilePath)
	default:
		return nil, nil // replay disabled
	}
}

// buildChain returns the real node client when a signing key is configured,
// otherwise a fake client with an ephemeral account for local development.
func buildChain(cfg *config.Config, log zerolog.Logger) (chain.Client, *chain.SigningAccount, error) {
	chainID := big.NewInt(cfg.Chain.ChainID)

	if cfg.Chain.PrivateKey == "" {
		log.Warn().Msg("no signing key configured; running in dry-run mode against a fake chain")
		account, err := chain.NewEphemeralAccount(chainID)
		if err != nil {
			return nil, nil, err
		}
		return chain.NewFakeClient(), account, nil
	}

	cli, err := chain.NewEthClient(context.Background(), chain.EthClientConfig{
		RPCURL:           cfg.Chain.RPCURL,
		NFTContract:      cfg.Chain.NFTContract,
		RPCTimeout:       cfg.Chain.RPCTimeout,
		InclusionTimeout: cfg.Chain.InclusionTimeout,
	})
	if err != nil {
		return nil, nil, err
	}

	account, err := chain.NewSigningAccount(cfg.Chain.PrivateKey, chainID)
	if err != nil {
		return nil, nil, err
	}
	return cli, account, nil
}

func tierTable(cfg *config.Config) map[string]minting.TierParams {
	table := make(map[string]minting.TierParams, len(cfg.Tiers))
	for name, entry := range cfg.Tiers {
		table[name] = minting.TierParams{
			MetadataURI:  entry.MetadataURI,
			RewardTokens: big.NewInt(entry.RewardTokens),
		}
	}
	return table
}
