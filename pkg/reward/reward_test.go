package reward_test

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pump-pill/arenax/pkg/model"
	"github.com/pump-pill/arenax/pkg/reward"
)

func stat(wallet string, volSol string) model.WalletEpochStat {
	return model.WalletEpochStat{
		Wallet:     wallet,
		EpochIndex: 7,
		VolSol:     decimal.RequireFromString(volSol),
		TradeCount: 1,
	}
}

func grantTotal(t *testing.T, grants []model.RewardGrant) *big.Int {
	t.Helper()
	total := new(big.Int)
	for _, g := range grants {
		total.Add(total, g.AmountLamports.BigInt())
	}
	return total
}

// TestProportionalGrantsExactBudget covers the reference scenario: three
// wallets with fractional SOL volumes and a 1 SOL budget in lamports.
func TestProportionalGrantsExactBudget(t *testing.T) {
	stats := []model.WalletEpochStat{
		stat("walletA", "25.5"),
		stat("walletB", "20.3"),
		stat("walletC", "16.7"),
	}
	policy := reward.Policy{
		TotalBudgetLamports: model.LamportsFromUint64(1_000_000_000),
		Distribution:        reward.ProportionalToVolume,
	}

	grants, err := reward.ComputeGrants(7, stats, policy)
	require.NoError(t, err)
	require.Len(t, grants, 3)

	// Output is ordered by wallet, matching the input here.
	assert.Equal(t, "walletA", grants[0].Wallet)
	assert.Equal(t, "408000000", grants[0].AmountLamports.String())
	assert.Equal(t, "324800000", grants[1].AmountLamports.String())
	assert.Equal(t, "267200000", grants[2].AmountLamports.String())

	// The grant total must equal the budget with no rounding drift, and the
	// highest-volume wallet must hold the largest share.
	assert.Equal(t, "1000000000", grantTotal(t, grants).String())
	assert.Equal(t, 1, grants[0].AmountLamports.Cmp(grants[1].AmountLamports))
	assert.Equal(t, 1, grants[0].AmountLamports.Cmp(grants[2].AmountLamports))

	for _, g := range grants {
		assert.Equal(t, model.GrantUnclaimed, g.Status)
		assert.Equal(t, uint64(7), g.EpochIndex)
	}
}

// TestProportionalGrantsRemainder forces a flooring remainder and checks it
// lands on the top-ranked wallet, with ties broken by ascending wallet.
func TestProportionalGrantsRemainder(t *testing.T) {
	tests := []struct {
		name     string
		stats    []model.WalletEpochStat
		budget   uint64
		expected map[string]string
	}{
		{
			name: "remainder goes to highest volume",
			stats: []model.WalletEpochStat{
				stat("aa", "1"),
				stat("bb", "1"),
				stat("cc", "2"),
			},
			budget: 103,
			// floor shares 25/25/51, remainder 2 to cc.
			expected: map[string]string{"aa": "25", "bb": "25", "cc": "53"},
		},
		{
			name: "volume tie breaks by ascending wallet",
			stats: []model.WalletEpochStat{
				stat("cc", "1"),
				stat("aa", "1"),
				stat("bb", "1"),
			},
			budget: 100,
			// floor shares 33 each, remainder 1 to aa.
			expected: map[string]string{"aa": "34", "bb": "33", "cc": "33"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := reward.Policy{
				TotalBudgetLamports: model.LamportsFromUint64(tt.budget),
				Distribution:        reward.ProportionalToVolume,
			}
			grants, err := reward.ComputeGrants(1, tt.stats, policy)
			require.NoError(t, err)
			require.Len(t, grants, len(tt.expected))

			for _, g := range grants {
				assert.Equal(t, tt.expected[g.Wallet], g.AmountLamports.String(), "wallet %s", g.Wallet)
			}
			assert.Equal(t, new(big.Int).SetUint64(tt.budget).String(), grantTotal(t, grants).String())
		})
	}
}

// TestComputeGrantsDeterministic re-runs the computation and expects identical
// amounts, which is what makes the close workflow's retries safe.
func TestComputeGrantsDeterministic(t *testing.T) {
	stats := []model.WalletEpochStat{
		stat("w1", "0.000000000000000001"),
		stat("w2", "123456.789"),
		stat("w3", "99.5"),
	}
	policy := reward.Policy{
		TotalBudgetLamports: model.LamportsFromUint64(987_654_321),
		Distribution:        reward.ProportionalToVolume,
	}

	first, err := reward.ComputeGrants(3, stats, policy)
	require.NoError(t, err)
	second, err := reward.ComputeGrants(3, stats, policy)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Wallet, second[i].Wallet)
		assert.Equal(t, first[i].AmountLamports.String(), second[i].AmountLamports.String())
	}
	assert.Equal(t, "987654321", grantTotal(t, first).String())
}

func TestComputeGrantsEmptyInputs(t *testing.T) {
	policy := reward.Policy{
		TotalBudgetLamports: model.LamportsFromUint64(1_000_000),
		Distribution:        reward.ProportionalToVolume,
	}

	grants, err := reward.ComputeGrants(1, nil, policy)
	require.NoError(t, err)
	assert.Empty(t, grants)

	// All-zero volume distributes nothing rather than dividing by zero.
	grants, err = reward.ComputeGrants(1, []model.WalletEpochStat{stat("aa", "0"), stat("bb", "0")}, policy)
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestTieredGrants(t *testing.T) {
	tiers := []reward.Tier{
		{MinVolSol: decimal.RequireFromString("100"), Amount: model.LamportsFromUint64(500)},
		{MinVolSol: decimal.RequireFromString("10"), Amount: model.LamportsFromUint64(100)},
	}

	t.Run("highest matching tier wins", func(t *testing.T) {
		policy := reward.Policy{
			TotalBudgetLamports: model.LamportsFromUint64(10_000),
			Distribution:        reward.Tiered,
			Tiers:               tiers,
		}
		grants, err := reward.ComputeGrants(2, []model.WalletEpochStat{
			stat("low", "15"),
			stat("high", "250"),
			stat("none", "3"),
		}, policy)
		require.NoError(t, err)
		require.Len(t, grants, 2)

		byWallet := map[string]string{}
		for _, g := range grants {
			byWallet[g.Wallet] = g.AmountLamports.String()
		}
		assert.Equal(t, "500", byWallet["high"])
		assert.Equal(t, "100", byWallet["low"])
	})

	t.Run("budget exhaustion stops payouts", func(t *testing.T) {
		policy := reward.Policy{
			TotalBudgetLamports: model.LamportsFromUint64(550),
			Distribution:        reward.Tiered,
			Tiers:               tiers,
		}
		grants, err := reward.ComputeGrants(2, []model.WalletEpochStat{
			stat("big", "300"),
			stat("small", "20"),
		}, policy)
		require.NoError(t, err)
		// Only the top wallet fits: 550 covers one 500 payout but not the
		// next 100.
		require.Len(t, grants, 1)
		assert.Equal(t, "big", grants[0].Wallet)
	})

	t.Run("unordered tiers rejected", func(t *testing.T) {
		policy := reward.Policy{
			TotalBudgetLamports: model.LamportsFromUint64(1000),
			Distribution:        reward.Tiered,
			Tiers: []reward.Tier{
				{MinVolSol: decimal.RequireFromString("10"), Amount: model.LamportsFromUint64(100)},
				{MinVolSol: decimal.RequireFromString("100"), Amount: model.LamportsFromUint64(500)},
			},
		}
		_, err := reward.ComputeGrants(2, []model.WalletEpochStat{stat("aa", "50")}, policy)
		require.Error(t, err)
	})
}

func TestPolicyValidate(t *testing.T) {
	assert.Error(t, reward.Policy{Distribution: "weighted"}.Validate())
	assert.NoError(t, reward.Policy{Distribution: reward.ProportionalToVolume}.Validate())
}
