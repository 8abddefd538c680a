package server

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"quizmint/internal/chain"
	"quizmint/internal/contracts"
	"quizmint/internal/minting"
	"quizmint/internal/quizgate"
)

type captureSink struct {
	mu     sync.Mutex
	hashes []string
	done   chan struct{}
}

func (c *captureSink) MintSucceeded(_ context.Context, _, _, txHash string) error {
	c.mu.Lock()
	c.hashes = append(c.hashes, txHash)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

// Full happy path: quiz completion issues a token, the token authorizes a
// Silver mint, the mint broadcasts one mint and one 200-token reward
// transfer and announces the result.
func TestQuizToMintEndToEnd(t *testing.T) {
	cli := chain.NewFakeClient()
	account, err := chain.NewSigningAccount(
		"4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		big.NewInt(84532),
	)
	require.NoError(t, err)

	policy, err := minting.NewPolicy(map[string]minting.TierParams{
		"Silver": {MetadataURI: "https://example.com/silver.json", RewardTokens: big.NewInt(200)},
	})
	require.NoError(t, err)

	nftContract := common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenContract := common.HexToAddress("0x2000000000000000000000000000000000000002")
	sink := &captureSink{done: make(chan struct{}, 1)}

	orchestrator := minting.NewOrchestrator(cli, account, policy, sink, minting.Config{
		NFTContract:   nftContract,
		TokenContract: tokenContract,
		SendRewards:   true,
		TokenDecimals: 18,
	}, zerolog.Nop())

	cfg := testConfig()
	gate := quizgate.NewGate("e2e-secret", 2*time.Minute)
	srv := NewServer(cfg, gate, orchestrator, nil, cli, zerolog.Nop())
	handler := srv.httpServer.Handler

	quizRec := postJSON(t, handler, "/complete-quiz", map[string]int{"score": 100}, nil)
	require.Equal(t, http.StatusOK, quizRec.Code)
	var quizResp completeQuizResponse
	require.NoError(t, json.Unmarshal(quizRec.Body.Bytes(), &quizResp))

	wallet := "0x8888f1F195AFa192CfeE860698584c030f4c9dB1"
	mintRec := postJSON(t, handler, "/mint-nft",
		map[string]string{"rarity": "Silver", "walletAddress": wallet},
		map[string]string{"Authorization": "Bearer " + quizResp.Token})
	require.Equal(t, http.StatusOK, mintRec.Code)

	var resp mintResponse
	require.NoError(t, json.Unmarshal(mintRec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.TransactionHash)

	submitted := cli.Submitted()
	require.Len(t, submitted, 2)
	require.Equal(t, nftContract, *submitted[0].To())
	require.Equal(t, tokenContract, *submitted[1].To())
	require.Equal(t, resp.TransactionHash, submitted[0].Hash().Hex())

	wantAmount, _ := new(big.Int).SetString("200000000000000000000", 10)
	wantData, err := contracts.PackTransfer(common.HexToAddress(wallet), wantAmount)
	require.NoError(t, err)
	require.Equal(t, wantData, submitted[1].Data())

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never dispatched")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Equal(t, []string{resp.TransactionHash}, sink.hashes)

	// A second attempt for the same (wallet, tier) hits the on-chain check.
	cli.GrantAward(common.HexToAddress(wallet), "Silver")
	again := postJSON(t, handler, "/mint-nft",
		map[string]string{"rarity": "Silver", "walletAddress": wallet},
		map[string]string{"Authorization": "Bearer " + quizResp.Token})
	require.Equal(t, http.StatusBadRequest, again.Code)
	require.Len(t, cli.Submitted(), 2, "no further transaction may be broadcast")
}
