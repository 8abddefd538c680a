package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"quizmint/internal/contracts"
)

// EthClient talks to an EVM node over JSON-RPC.
type EthClient struct {
	client        *ethclient.Client
	nftAddress    common.Address
	rpcTimeout    time.Duration
	pollEvery     time.Duration
	inclusionWait time.Duration
}

type EthClientConfig struct {
	RPCURL           string
	NFTContract      string
	RPCTimeout       time.Duration
	InclusionTimeout time.Duration
}

func NewEthClient(ctx context.Context, cfg EthClientConfig) (*EthClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.NFTContract) {
		return nil, fmt.Errorf("invalid nft contract address %q", cfg.NFTContract)
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	timeout := cfg.RPCTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	inclusion := cfg.InclusionTimeout
	if inclusion <= 0 {
		inclusion = 2 * time.Minute
	}

	return &EthClient{
		client:        cli,
		nftAddress:    common.HexToAddress(cfg.NFTContract),
		rpcTimeout:    timeout,
		pollEvery:     2 * time.Second,
		inclusionWait: inclusion,
	}, nil
}

// ChainID queries the node for its chain identifier.
func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()
	id, err := c.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	return id, nil
}

func (c *EthClient) HasExistingAward(ctx context.Context, wallet common.Address, rarity string) (bool, error) {
	data, err := contracts.PackHasRarity(wallet, rarity)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.nftAddress,
		Data: data,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("hasRarity call: %w", err)
	}
	return contracts.UnpackHasRarity(out)
}

func (c *EthClient) EstimateGas(ctx context.Context, from common.Address, call CallIntent) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &call.To,
		Data: call.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return gas, nil
}

func (c *EthClient) GasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	price, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	return price, nil
}

func (c *EthClient) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	nonce, err := c.client.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("fetch nonce: %w", err)
	}
	return nonce, nil
}

func (c *EthClient) Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	sendCtx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	if err := c.client.SendTransaction(sendCtx, tx); err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}

	receipt, err := c.waitForReceipt(ctx, tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return receipt, nil
}

// waitForReceipt polls until the transaction is mined, the inclusion
// deadline passes or the context ends. Every poll is bounded by the RPC
// timeout so a wedged connection cannot stall the caller, which holds
// the account's nonce lock for the duration of the wait.
func (c *EthClient) waitForReceipt(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	deadline := time.NewTimer(c.inclusionWait)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		receipt, err := c.pollReceipt(ctx, tx.Hash())
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("await receipt for %s: %w", tx.Hash().Hex(), ctx.Err())
		case <-deadline.C:
			return nil, fmt.Errorf("transaction %s not mined within %s", tx.Hash().Hex(), c.inclusionWait)
		case <-ticker.C:
		}
	}
}

func (c *EthClient) pollReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()
	return c.client.TransactionReceipt(ctx, hash)
}

func (c *EthClient) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()
	_, err := c.client.BlockNumber(ctx)
	return err
}
