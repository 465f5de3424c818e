package model

// LeaderboardEntry is a read-only projection served by the query API. Rank is
// recomputed on every query and never stored, so it cannot go stale under
// concurrent writes.
type LeaderboardEntry struct {
	Rank           int             `json:"rank"`
	Wallet         string          `json:"wallet"`
	Stats          WalletEpochStat `json:"stats"`
	RewardLamports Lamports        `json:"rewardLamports"`
}
