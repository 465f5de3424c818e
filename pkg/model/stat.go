package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletEpochStat is the derived per-wallet, per-epoch aggregate. Exactly one
// row exists per (wallet, epoch); it is recomputed from trade events and never
// hand-edited.
type WalletEpochStat struct {
	Wallet     string           `json:"wallet"`
	EpochIndex uint64           `json:"epoch"`
	VolToken   decimal.Decimal  `json:"volToken"`
	VolSol     decimal.Decimal  `json:"volSol"`
	VolUsd     *decimal.Decimal `json:"volUsd,omitempty"`
	TradeCount uint64           `json:"tradeCount"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}
