// Package chain wraps the connection to the remote EVM node and the single
// process-wide signing account.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CallIntent is an unsigned contract call: target plus encoded call data.
type CallIntent struct {
	To   common.Address
	Data []byte
}

// TxIntent carries everything needed to sign one transaction. Immutable
// once handed to SigningAccount.Sign.
type TxIntent struct {
	To       common.Address
	Data     []byte
	Gas      uint64
	GasPrice *big.Int
	Nonce    uint64
}

// Client abstracts the chain node interaction. Reads are point-in-time:
// implementations must not cache gas prices, nonces or award state across
// calls. The orchestrator depends on fresh values for correctness.
type Client interface {
	// HasExistingAward reports whether the wallet already holds an NFT of
	// the given rarity, per current chain state.
	HasExistingAward(ctx context.Context, wallet common.Address, rarity string) (bool, error)

	// EstimateGas simulates the call from the given sender. A revert in
	// simulation surfaces as an error before anything is signed.
	EstimateGas(ctx context.Context, from common.Address, call CallIntent) (uint64, error)

	// GasPrice returns the node's current suggested gas price.
	GasPrice(ctx context.Context) (*big.Int, error)

	// PendingNonce returns the account's next nonce including pending
	// transactions.
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)

	// Submit broadcasts a signed transaction and blocks until the node
	// reports inclusion or failure. A returned error does not guarantee
	// the transaction is absent from the chain; it may have been mined
	// despite a failure on the response path.
	Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// HealthChecker is implemented by clients that can probe the RPC endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
