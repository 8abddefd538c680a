// Package contracts holds the ABI fragments and call-data packing for the
// two deployed contracts the service talks to: the quiz NFT minter and the
// ERC-20 reward token.
package contracts

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// NFTMinterABI covers the subset of the minter contract the service calls.
const NFTMinterABI = `[
  {
    "name": "hasRarity",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      {"name": "owner", "type": "address"},
      {"name": "rarity", "type": "string"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "name": "safeMint",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "to", "type": "address"},
      {"name": "uri", "type": "string"},
      {"name": "rarity", "type": "string"}
    ],
    "outputs": []
  }
]`

// RewardTokenABI covers the single ERC-20 method used for reward transfers.
const RewardTokenABI = `[
  {
    "name": "transfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "to", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  }
]`

var (
	parseOnce sync.Once
	minterABI abi.ABI
	tokenABI  abi.ABI
	parseErr  error
)

func parsed() error {
	parseOnce.Do(func() {
		minterABI, parseErr = abi.JSON(strings.NewReader(NFTMinterABI))
		if parseErr != nil {
			return
		}
		tokenABI, parseErr = abi.JSON(strings.NewReader(RewardTokenABI))
	})
	return parseErr
}

// PackHasRarity encodes the idempotency view call.
func PackHasRarity(owner common.Address, rarity string) ([]byte, error) {
	if err := parsed(); err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	data, err := minterABI.Pack("hasRarity", owner, rarity)
	if err != nil {
		return nil, fmt.Errorf("pack hasRarity: %w", err)
	}
	return data, nil
}

// UnpackHasRarity decodes the boolean result of a hasRarity call.
func UnpackHasRarity(output []byte) (bool, error) {
	if err := parsed(); err != nil {
		return false, fmt.Errorf("parse abi: %w", err)
	}
	values, err := minterABI.Unpack("hasRarity", output)
	if err != nil {
		return false, fmt.Errorf("unpack hasRarity: %w", err)
	}
	owned, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected hasRarity result type %T", values[0])
	}
	return owned, nil
}

// PackSafeMint encodes the mint call for a wallet, metadata URI and rarity.
func PackSafeMint(to common.Address, uri, rarity string) ([]byte, error) {
	if err := parsed(); err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	data, err := minterABI.Pack("safeMint", to, uri, rarity)
	if err != nil {
		return nil, fmt.Errorf("pack safeMint: %w", err)
	}
	return data, nil
}

// PackTransfer encodes an ERC-20 transfer of amount base units.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	if err := parsed(); err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	data, err := tokenABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("pack transfer: %w", err)
	}
	return data, nil
}
