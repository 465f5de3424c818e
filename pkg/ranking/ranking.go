package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pump-pill/arenax/pkg/model"
)

// SortBy selects the leaderboard sort dimension.
type SortBy string

// Order is the sort direction.
type Order string

const (
	ByVolume  SortBy = "volume"
	ByRewards SortBy = "rewards"
	// ByRank is the platform's canonical ranking: rewards, descending.
	ByRank SortBy = "rank"

	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseSortBy validates a sortBy query value; empty defaults to the canonical
// ranking.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(strings.ToLower(s)) {
	case "":
		return ByRank, nil
	case ByVolume:
		return ByVolume, nil
	case ByRewards:
		return ByRewards, nil
	case ByRank:
		return ByRank, nil
	default:
		return "", fmt.Errorf("invalid sortBy %q", s)
	}
}

// ParseOrder validates an order query value; empty defaults to descending.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(s)) {
	case "":
		return Desc, nil
	case Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	default:
		return "", fmt.Errorf("invalid order %q", s)
	}
}

// Rank orders the epoch's wallets under the requested dimension and assigns
// 1-based ranks by output position. The comparator is a total order: equal
// sort keys fall back to ascending wallet address, so no two wallets ever
// compare equal and repeated calls over the same input produce identical
// output. Reward amounts compare as big integers, never floats, since lamport
// totals exceed the float64 safe-integer range.
//
// Before an epoch settles, rewards is empty and every entry carries zero
// lamports, so the rank and rewards dimensions degenerate to the wallet
// tie-break. Callers wanting a meaningful pre-settlement board should sort by
// volume.
func Rank(stats []model.WalletEpochStat, rewards map[string]model.Lamports, sortBy SortBy, order Order) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0, len(stats))
	for _, s := range stats {
		entries = append(entries, model.LeaderboardEntry{
			Wallet:         s.Wallet,
			Stats:          s,
			RewardLamports: rewards[s.Wallet],
		})
	}

	less := comparator(sortBy, order)
	sort.Slice(entries, func(i, j int) bool { return less(entries[i], entries[j]) })

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func comparator(sortBy SortBy, order Order) func(a, b model.LeaderboardEntry) bool {
	cmp := func(a, b model.LeaderboardEntry) int {
		switch sortBy {
		case ByVolume:
			return a.Stats.VolSol.Cmp(b.Stats.VolSol)
		default:
			// Rewards and the canonical rank dimension share a key.
			return a.RewardLamports.Cmp(b.RewardLamports)
		}
	}

	return func(a, b model.LeaderboardEntry) bool {
		c := cmp(a, b)
		if c == 0 {
			// Tie-break is always ascending wallet, independent of order,
			// so the ordering stays total in both directions.
			return a.Wallet < b.Wallet
		}
		if order == Asc {
			return c < 0
		}
		return c > 0
	}
}
