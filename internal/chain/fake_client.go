package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FakeClient emulates the node deterministically. It backs dry-run mode
// (no signing key configured) and serves as a base for test doubles.
type FakeClient struct {
	mu        sync.Mutex
	awards    map[string]bool
	nonce     uint64
	submitted []*types.Transaction
}

func NewFakeClient() *FakeClient {
	return &FakeClient{awards: make(map[string]bool)}
}

// GrantAward marks (wallet, rarity) as already minted.
func (f *FakeClient) GrantAward(wallet common.Address, rarity string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awards[awardKey(wallet, rarity)] = true
}

// Submitted returns a copy of every transaction broadcast so far.
func (f *FakeClient) Submitted() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Transaction, len(f.submitted))
	copy(out, f.submitted)
	return out
}

func (f *FakeClient) HasExistingAward(_ context.Context, wallet common.Address, rarity string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.awards[awardKey(wallet, rarity)], nil
}

func (f *FakeClient) EstimateGas(context.Context, common.Address, CallIntent) (uint64, error) {
	return 150_000, nil
}

func (f *FakeClient) GasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *FakeClient) PendingNonce(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *FakeClient) Submit(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, tx)
	f.nonce++
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: tx.Hash(),
	}, nil
}

func (f *FakeClient) Ping(context.Context) error { return nil }

func awardKey(wallet common.Address, rarity string) string {
	return wallet.Hex() + "|" + rarity
}
