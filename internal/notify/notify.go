// Package notify announces successful mints to an external channel.
// Delivery is best-effort: a failed announcement never affects the mint.
package notify

import "context"

// Sink receives mint-success announcements.
type Sink interface {
	MintSucceeded(ctx context.Context, wallet, rarity, txHash string) error
}

// NopSink discards announcements. Used when no channel is configured.
type NopSink struct{}

func (NopSink) MintSucceeded(context.Context, string, string, string) error { return nil }
