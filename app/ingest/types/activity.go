package types

// ActivityEpochInput addresses one epoch for the close sequence activities.
type ActivityEpochInput struct {
	EpochIndex uint64 `json:"epochIndex"`
}

// ActivityCloseEpochOutput reports whether this run performed the transition.
type ActivityCloseEpochOutput struct {
	Transitioned bool    `json:"transitioned"`
	DurationMs   float64 `json:"durationMs"`
}

// ActivitySnapshotStatsOutput reports the recomputed aggregate set.
type ActivitySnapshotStatsOutput struct {
	Wallets    int     `json:"wallets"`
	Trades     int     `json:"trades"`
	DurationMs float64 `json:"durationMs"`
}

// ActivityComputeGrantsOutput reports the persisted grant set.
type ActivityComputeGrantsOutput struct {
	Grants          int     `json:"grants"`
	AlreadyComputed bool    `json:"alreadyComputed"`
	TotalLamports   string  `json:"totalLamports"`
	DurationMs      float64 `json:"durationMs"`
}
