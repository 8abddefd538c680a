package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramSink posts a sendVideo announcement to a Telegram chat.
type TelegramSink struct {
	botToken    string
	chatID      string
	videoURL    string
	explorerURL string
	baseURL     string
	client      *http.Client
	log         zerolog.Logger
}

type TelegramConfig struct {
	BotToken    string
	ChatID      string
	VideoURL    string
	ExplorerURL string // transaction explorer prefix, e.g. https://basescan.org/tx/
	BaseURL     string // overridable for tests
}

func NewTelegramSink(cfg TelegramConfig, log zerolog.Logger) (*TelegramSink, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultTelegramAPI
	}
	explorer := cfg.ExplorerURL
	if explorer == "" {
		explorer = "https://basescan.org/tx/"
	}
	return &TelegramSink{
		botToken:    cfg.BotToken,
		chatID:      cfg.ChatID,
		videoURL:    cfg.VideoURL,
		explorerURL: explorer,
		baseURL:     base,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}, nil
}

type sendVideoRequest struct {
	ChatID    string `json:"chat_id"`
	Video     string `json:"video"`
	Caption   string `json:"caption"`
	ParseMode string `json:"parse_mode"`
}

func (s *TelegramSink) MintSucceeded(ctx context.Context, wallet, rarity, txHash string) error {
	txURL := s.explorerURL + txHash
	payload := sendVideoRequest{
		ChatID:    s.chatID,
		Video:     s.videoURL,
		Caption:   fmt.Sprintf("🚀 New %s NFT minted!\n\n🔗 [Transaction](%s)", rarity, txURL),
		ParseMode: "markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendVideo", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build announcement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api returned %d", resp.StatusCode)
	}

	s.log.Debug().Str("tx", txHash).Str("rarity", rarity).Str("wallet", wallet).Msg("mint announced")
	return nil
}
