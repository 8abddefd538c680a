package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SigningAccount holds the single process-wide signing key. The key never
// leaves this struct and is never logged.
type SigningAccount struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewSigningAccount parses a hex private key for the given chain.
func NewSigningAccount(privateKeyHex string, chainID *big.Int) (*SigningAccount, error) {
	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	return &SigningAccount{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// NewEphemeralAccount generates a throwaway key, used in dry-run mode.
func NewEphemeralAccount(chainID *big.Int) (*SigningAccount, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &SigningAccount{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func (a *SigningAccount) Address() common.Address {
	return a.address
}

func (a *SigningAccount) ChainID() *big.Int {
	return new(big.Int).Set(a.chainID)
}

// Sign produces a signed legacy transaction from the intent. Deterministic
// for identical inputs.
func (a *SigningAccount) Sign(intent TxIntent) (*types.Transaction, error) {
	if intent.GasPrice == nil {
		return nil, fmt.Errorf("gas price is required")
	}
	tx := types.NewTransaction(intent.Nonce, intent.To, big.NewInt(0), intent.Gas, intent.GasPrice, intent.Data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.chainID), a.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}
