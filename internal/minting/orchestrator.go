// Package minting turns a validated mint request into one or two signed,
// correctly-nonced chain transactions plus a best-effort notification.
package minting

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"quizmint/internal/chain"
	"quizmint/internal/contracts"
	"quizmint/internal/notify"
)

var (
	// ErrInvalidWallet rejects syntactically invalid destination addresses.
	ErrInvalidWallet = errors.New("invalid wallet address")
	// ErrAlreadyAwarded is the expected negative outcome of the on-chain
	// idempotency check, not a server error.
	ErrAlreadyAwarded = errors.New("wallet already owns an nft of this rarity")
	// ErrMintInFlight guards the gap between the idempotency check and the
	// broadcast: a concurrent request for the same (wallet, tier) is
	// rejected instead of racing the check.
	ErrMintInFlight = errors.New("a mint for this wallet and rarity is already in progress")
)

// IsClientError reports whether err maps to a caller mistake rather than
// an orchestration failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidWallet) ||
		errors.Is(err, ErrUnknownTier) ||
		errors.Is(err, ErrAlreadyAwarded) ||
		errors.Is(err, ErrMintInFlight)
}

// Request is a validated-shape mint request.
type Request struct {
	WalletAddress string
	Rarity        string
}

// Outcome is the terminal result of one mint request. RewardErr records a
// failed reward leg for diagnostics; it never voids the mint.
type Outcome struct {
	TxHash       string
	RewardTxHash string
	RewardErr    error
}

// Config holds the per-deployment orchestrator parameters.
type Config struct {
	NFTContract   common.Address
	TokenContract common.Address
	SendRewards   bool
	TokenDecimals int
	NotifyTimeout time.Duration
}

// Orchestrator owns the signing account's nonce discipline. All
// nonce-consuming work for the account is serialized through nonceMu:
// no two transactions ever observe the same pending nonce.
type Orchestrator struct {
	chain    chain.Client
	account  *chain.SigningAccount
	policy   *Policy
	notifier notify.Sink
	cfg      Config
	log      zerolog.Logger

	nonceMu sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func NewOrchestrator(cli chain.Client, account *chain.SigningAccount, policy *Policy, notifier notify.Sink, cfg Config, log zerolog.Logger) *Orchestrator {
	if cfg.TokenDecimals <= 0 {
		cfg.TokenDecimals = 18
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if notifier == nil {
		notifier = notify.NopSink{}
	}
	return &Orchestrator{
		chain:    cli,
		account:  account,
		policy:   policy,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		inflight: make(map[string]struct{}),
	}
}

// Mint runs the full pipeline: validate, idempotency check, mint leg,
// conditional reward leg, async notification. The mint leg is the only
// authoritative guarantee; reward and notification are best-effort.
func (o *Orchestrator) Mint(ctx context.Context, req Request) (*Outcome, error) {
	if !common.IsHexAddress(req.WalletAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWallet, req.WalletAddress)
	}
	wallet := common.HexToAddress(req.WalletAddress)

	params, err := o.policy.Resolve(req.Rarity)
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(wallet, req.Rarity)
	if err != nil {
		return nil, err
	}
	defer release()

	owned, err := o.chain.HasExistingAward(ctx, wallet, req.Rarity)
	if err != nil {
		return nil, fmt.Errorf("idempotency check: %w", err)
	}
	if owned {
		return nil, ErrAlreadyAwarded
	}

	mintData, err := contracts.PackSafeMint(wallet, params.MetadataURI, req.Rarity)
	if err != nil {
		return nil, err
	}
	receipt, err := o.submitSerialized(ctx, chain.CallIntent{To: o.cfg.NFTContract, Data: mintData})
	if err != nil {
		return nil, fmt.Errorf("mint %s for %s: %w", req.Rarity, wallet.Hex(), err)
	}

	outcome := &Outcome{TxHash: receipt.TxHash.Hex()}

	// The mint is settled; everything below must not change the outcome.
	amount := params.RewardBaseUnits(o.cfg.TokenDecimals)
	if o.cfg.SendRewards && amount.Sign() > 0 {
		rewardHash, rewardErr := o.sendReward(ctx, wallet, amount)
		if rewardErr != nil {
			outcome.RewardErr = rewardErr
			o.log.Warn().
				Err(rewardErr).
				Str("wallet", wallet.Hex()).
				Str("rarity", req.Rarity).
				Str("mint_tx", outcome.TxHash).
				Msg("reward transfer failed; mint preserved")
		} else {
			outcome.RewardTxHash = rewardHash
		}
	}

	o.dispatchNotification(wallet.Hex(), req.Rarity, outcome.TxHash)
	return outcome, nil
}

// sendReward transfers the tier's reward amount to the freshly minted
// wallet using a freshly fetched nonce. The mint broadcast has already
// settled by the time this runs, so the nonce read reflects it.
func (o *Orchestrator) sendReward(ctx context.Context, wallet common.Address, amount *big.Int) (string, error) {
	data, err := contracts.PackTransfer(wallet, amount)
	if err != nil {
		return "", err
	}
	receipt, err := o.submitSerialized(ctx, chain.CallIntent{To: o.cfg.TokenContract, Data: data})
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// submitSerialized runs estimate → [price → nonce → sign → broadcast] for
// one transaction. The mutex spans nonce fetch through inclusion so a
// concurrent request cannot read the same nonce before this one settles.
func (o *Orchestrator) submitSerialized(ctx context.Context, call chain.CallIntent) (*types.Receipt, error) {
	gas, err := o.chain.EstimateGas(ctx, o.account.Address(), call)
	if err != nil {
		return nil, fmt.Errorf("estimation: %w", err)
	}

	o.nonceMu.Lock()
	defer o.nonceMu.Unlock()

	price, err := o.chain.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	nonce, err := o.chain.PendingNonce(ctx, o.account.Address())
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	signed, err := o.account.Sign(chain.TxIntent{
		To:       call.To,
		Data:     call.Data,
		Gas:      gas,
		GasPrice: price,
		Nonce:    nonce,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := o.chain.Submit(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	return receipt, nil
}

// acquire takes the per-(wallet, tier) in-flight slot.
func (o *Orchestrator) acquire(wallet common.Address, rarity string) (func(), error) {
	key := strings.ToLower(wallet.Hex()) + "|" + rarity

	o.inflightMu.Lock()
	defer o.inflightMu.Unlock()
	if _, busy := o.inflight[key]; busy {
		return nil, ErrMintInFlight
	}
	o.inflight[key] = struct{}{}
	return func() {
		o.inflightMu.Lock()
		defer o.inflightMu.Unlock()
		delete(o.inflight, key)
	}, nil
}

// dispatchNotification fires after the outcome is determined. Failures are
// logged and never observable to the caller.
func (o *Orchestrator) dispatchNotification(wallet, rarity, txHash string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.NotifyTimeout)
		defer cancel()
		if err := o.notifier.MintSucceeded(ctx, wallet, rarity, txHash); err != nil {
			o.log.Warn().Err(err).Str("tx", txHash).Msg("mint notification failed")
		}
	}()
}
