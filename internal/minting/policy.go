package minting

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrUnknownTier rejects rarities outside the deployment's configured set.
var ErrUnknownTier = errors.New("unknown rarity tier")

// TierParams are the per-tier minting parameters.
type TierParams struct {
	MetadataURI  string
	RewardTokens *big.Int // whole tokens, scaled by the token's decimals at transfer time
}

// RewardBaseUnits converts the whole-token reward into base units.
func (t TierParams) RewardBaseUnits(decimals int) *big.Int {
	if t.RewardTokens == nil || t.RewardTokens.Sign() <= 0 {
		return new(big.Int)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(t.RewardTokens, scale)
}

// Policy maps rarity tiers to mint parameters. The tier set is closed per
// deployment: unconfigured tiers fail resolution instead of silently
// minting with empty metadata.
type Policy struct {
	tiers map[string]TierParams
}

// NewPolicy builds a policy from the configured tier table.
func NewPolicy(tiers map[string]TierParams) (*Policy, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("tier table is empty")
	}
	table := make(map[string]TierParams, len(tiers))
	for name, params := range tiers {
		if name == "" {
			return nil, fmt.Errorf("tier with empty name")
		}
		if params.MetadataURI == "" {
			return nil, fmt.Errorf("tier %q has no metadata uri", name)
		}
		if params.RewardTokens != nil && params.RewardTokens.Sign() < 0 {
			return nil, fmt.Errorf("tier %q has negative reward", name)
		}
		table[name] = params
	}
	return &Policy{tiers: table}, nil
}

// Resolve returns the parameters for a tier or ErrUnknownTier.
func (p *Policy) Resolve(tier string) (TierParams, error) {
	params, ok := p.tiers[tier]
	if !ok {
		return TierParams{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return params, nil
}

// Tiers lists the configured tier names.
func (p *Policy) Tiers() []string {
	names := make([]string, 0, len(p.tiers))
	for name := range p.tiers {
		names = append(names, name)
	}
	return names
}
