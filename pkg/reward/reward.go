package reward

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pump-pill/arenax/pkg/model"
)

// Distribution selects how an epoch's budget is split.
type Distribution string

const (
	ProportionalToVolume Distribution = "proportional"
	Tiered               Distribution = "tiered"
)

// Tier pays a fixed amount to every wallet at or above a volume threshold
// that did not already qualify for a higher tier.
type Tier struct {
	MinVolSol decimal.Decimal `json:"minVolSol"`
	Amount    model.Lamports  `json:"amountLamports"`
}

// Policy configures grant computation for one epoch.
type Policy struct {
	TotalBudgetLamports model.Lamports `json:"totalBudgetLamports"`
	Distribution        Distribution   `json:"distribution"`
	// Tiers must be ordered by descending MinVolSol. Only read when
	// Distribution is Tiered.
	Tiers []Tier `json:"tiers,omitempty"`
}

// Validate rejects malformed policies before they reach grant computation.
func (p Policy) Validate() error {
	switch p.Distribution {
	case ProportionalToVolume:
		return nil
	case Tiered:
		for i := 1; i < len(p.Tiers); i++ {
			if p.Tiers[i].MinVolSol.Cmp(p.Tiers[i-1].MinVolSol) >= 0 {
				return fmt.Errorf("tier thresholds must strictly descend")
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown distribution %q", p.Distribution)
	}
}

// ComputeGrants splits the epoch budget across the epoch's wallets. All
// arithmetic is integer: volumes are rescaled to a shared fixed-point scale
// and shares computed by big.Int floor division, so the grant total never
// drifts from the budget by rounding. Zero participants or zero total volume
// yields no grants.
func ComputeGrants(epochIndex uint64, stats []model.WalletEpochStat, policy Policy) ([]model.RewardGrant, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, nil
	}

	switch policy.Distribution {
	case Tiered:
		return tieredGrants(epochIndex, stats, policy)
	default:
		return proportionalGrants(epochIndex, stats, policy)
	}
}

// proportionalGrants pays floor(budget * walletVol / totalVol) per wallet and
// gives the flooring remainder, at most one lamport per wallet, to the
// top-ranked wallet so the budget is distributed exactly.
func proportionalGrants(epochIndex uint64, stats []model.WalletEpochStat, policy Policy) ([]model.RewardGrant, error) {
	budget := policy.TotalBudgetLamports.BigInt()

	// Shift every volume to 18 fractional digits, matching the stored
	// precision, so the rescale is exact.
	volumes := make([]*big.Int, len(stats))
	totalVol := new(big.Int)
	for i, s := range stats {
		volumes[i] = s.VolSol.Shift(18).BigInt()
		if volumes[i].Sign() < 0 {
			return nil, fmt.Errorf("wallet %s has negative volume", s.Wallet)
		}
		totalVol.Add(totalVol, volumes[i])
	}
	if totalVol.Sign() == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	grants := make([]model.RewardGrant, 0, len(stats))
	distributed := new(big.Int)
	topIdx := 0

	for i, s := range stats {
		share := new(big.Int).Mul(budget, volumes[i])
		share.Quo(share, totalVol)
		distributed.Add(distributed, share)

		amount, err := model.LamportsFromBigInt(share)
		if err != nil {
			return nil, err
		}
		grants = append(grants, model.RewardGrant{
			Wallet:         s.Wallet,
			EpochIndex:     epochIndex,
			AmountLamports: amount,
			Status:         model.GrantUnclaimed,
			CreatedAt:      now,
		})

		if volumes[i].Cmp(volumes[topIdx]) > 0 ||
			(volumes[i].Cmp(volumes[topIdx]) == 0 && s.Wallet < stats[topIdx].Wallet) {
			topIdx = i
		}
	}

	remainder := new(big.Int).Sub(budget, distributed)
	if remainder.Sign() > 0 {
		topAmount := grants[topIdx].AmountLamports.BigInt()
		topAmount.Add(topAmount, remainder)
		amount, err := model.LamportsFromBigInt(topAmount)
		if err != nil {
			return nil, err
		}
		grants[topIdx].AmountLamports = amount
	}

	sort.Slice(grants, func(i, j int) bool { return grants[i].Wallet < grants[j].Wallet })
	return grants, nil
}

// tieredGrants pays each wallet the amount of the highest tier its volume
// reaches, in descending volume order, stopping once the budget cannot cover
// the next payout.
func tieredGrants(epochIndex uint64, stats []model.WalletEpochStat, policy Policy) ([]model.RewardGrant, error) {
	ordered := make([]model.WalletEpochStat, len(stats))
	copy(ordered, stats)
	sort.Slice(ordered, func(i, j int) bool {
		if c := ordered[i].VolSol.Cmp(ordered[j].VolSol); c != 0 {
			return c > 0
		}
		return ordered[i].Wallet < ordered[j].Wallet
	})

	now := time.Now().UTC()
	remaining := policy.TotalBudgetLamports.BigInt()
	var grants []model.RewardGrant

	for _, s := range ordered {
		tier, ok := matchTier(policy.Tiers, s.VolSol)
		if !ok {
			// Ordered by volume, so no later wallet qualifies either.
			break
		}
		amount := tier.Amount.BigInt()
		if remaining.Cmp(amount) < 0 {
			break
		}
		remaining.Sub(remaining, amount)
		grants = append(grants, model.RewardGrant{
			Wallet:         s.Wallet,
			EpochIndex:     epochIndex,
			AmountLamports: tier.Amount,
			Status:         model.GrantUnclaimed,
			CreatedAt:      now,
		})
	}

	sort.Slice(grants, func(i, j int) bool { return grants[i].Wallet < grants[j].Wallet })
	return grants, nil
}

func matchTier(tiers []Tier, vol decimal.Decimal) (Tier, bool) {
	for _, t := range tiers {
		if vol.Cmp(t.MinVolSol) >= 0 {
			return t, true
		}
	}
	return Tier{}, false
}
