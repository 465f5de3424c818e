package model

import "time"

// GrantStatus is the claim state of a reward grant.
// unclaimed -> claiming -> claimed, with claiming -> unclaimed on payout failure.
type GrantStatus string

const (
	GrantUnclaimed GrantStatus = "unclaimed"
	GrantClaiming  GrantStatus = "claiming"
	GrantClaimed   GrantStatus = "claimed"
)

// RewardGrant is a computed reward entitlement for one wallet in one epoch.
// Grants are created exactly once per wallet when an epoch closes, and the
// claimed transition happens at most once.
type RewardGrant struct {
	Wallet         string      `json:"wallet"`
	EpochIndex     uint64      `json:"epoch"`
	AmountLamports Lamports    `json:"amountLamports"`
	Status         GrantStatus `json:"status"`
	ClaimSignature string      `json:"claimSignature,omitempty"`
	ClaimedAt      *time.Time  `json:"claimedAtUtc,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}
