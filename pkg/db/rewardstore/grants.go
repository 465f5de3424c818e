package rewardstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pump-pill/arenax/pkg/model"
)

func (db *DB) initGrants(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS reward_grants (
			wallet TEXT NOT NULL,
			epoch_index BIGINT NOT NULL REFERENCES epochs(epoch_index),
			amount_lamports TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'unclaimed',
			claim_signature TEXT NOT NULL DEFAULT '',
			claimed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (wallet, epoch_index)
		)
	`
	_, err := db.Pool.Exec(ctx, query)
	return err
}

const grantColumns = `wallet, epoch_index, amount_lamports, status, claim_signature, claimed_at, created_at`

func scanGrant(row pgx.Row) (*model.RewardGrant, error) {
	var g model.RewardGrant
	var status string
	err := row.Scan(&g.Wallet, &g.EpochIndex, &g.AmountLamports, &status, &g.ClaimSignature, &g.ClaimedAt, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGrantNotFound
		}
		return nil, err
	}
	g.Status = model.GrantStatus(status)
	return &g, nil
}

// InsertGrants persists the grant set for a closed epoch in one transaction.
// The epoch row is locked and its grants_computed flag checked inside the same
// transaction, so a second invocation is a no-op that returns the existing
// grants instead of double-allocating the budget.
func (db *DB) InsertGrants(ctx context.Context, epochIndex uint64, grants []model.RewardGrant) ([]model.RewardGrant, bool, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	var computed bool
	err = tx.QueryRow(ctx, `
		SELECT status, grants_computed FROM epochs WHERE epoch_index = $1 FOR UPDATE
	`, epochIndex).Scan(&status, &computed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrEpochNotFound
		}
		return nil, false, err
	}
	if model.EpochStatus(status) != model.EpochClosed {
		return nil, false, ErrEpochNotClosed
	}
	if computed {
		existing, err := db.grantsByEpochTx(ctx, tx, epochIndex)
		if err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}

	for _, g := range grants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO reward_grants (wallet, epoch_index, amount_lamports, status)
			VALUES ($1, $2, $3, 'unclaimed')
		`, g.Wallet, epochIndex, g.AmountLamports); err != nil {
			return nil, false, fmt.Errorf("insert grant for %s: %w", g.Wallet, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE epochs SET grants_computed = TRUE, updated_at = NOW() WHERE epoch_index = $1
	`, epochIndex); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return grants, false, nil
}

func (db *DB) grantsByEpochTx(ctx context.Context, tx pgx.Tx, epochIndex uint64) ([]model.RewardGrant, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+grantColumns+` FROM reward_grants
		WHERE epoch_index = $1 ORDER BY wallet
	`, epochIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func collectGrants(rows pgx.Rows) ([]model.RewardGrant, error) {
	var out []model.RewardGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// GetGrant returns one grant, or ErrGrantNotFound.
func (db *DB) GetGrant(ctx context.Context, wallet string, epochIndex uint64) (*model.RewardGrant, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+grantColumns+` FROM reward_grants WHERE wallet = $1 AND epoch_index = $2
	`, wallet, epochIndex)
	return scanGrant(row)
}

// GrantsByEpoch returns every grant for an epoch.
func (db *DB) GrantsByEpoch(ctx context.Context, epochIndex uint64) ([]model.RewardGrant, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+grantColumns+` FROM reward_grants WHERE epoch_index = $1 ORDER BY wallet
	`, epochIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

// UnclaimedByWallet returns a wallet's unclaimed grants, newest epoch first.
func (db *DB) UnclaimedByWallet(ctx context.Context, wallet string) ([]model.RewardGrant, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+grantColumns+` FROM reward_grants
		WHERE wallet = $1 AND status = 'unclaimed'
		ORDER BY epoch_index DESC
	`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

// BeginClaim performs the unclaimed -> claiming transition as a conditional
// UPDATE. Exactly one of N concurrent callers observes RowsAffected == 1; the
// rest are classified by re-reading the row.
func (db *DB) BeginClaim(ctx context.Context, wallet string, epochIndex uint64) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE reward_grants SET status = 'claiming', updated_at = NOW()
		WHERE wallet = $1 AND epoch_index = $2 AND status = 'unclaimed'
	`, wallet, epochIndex)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	g, err := db.GetGrant(ctx, wallet, epochIndex)
	if err != nil {
		return err
	}
	switch g.Status {
	case model.GrantClaimed:
		return ErrAlreadyClaimed
	case model.GrantClaiming:
		return ErrClaimInProgress
	default:
		// Lost a race against a rollback; caller may simply retry.
		return ErrClaimInProgress
	}
}

// ConfirmClaim completes claiming -> claimed and records the ledger signature.
func (db *DB) ConfirmClaim(ctx context.Context, wallet string, epochIndex uint64, signature string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE reward_grants
		SET status = 'claimed', claim_signature = $3, claimed_at = NOW(), updated_at = NOW()
		WHERE wallet = $1 AND epoch_index = $2 AND status = 'claiming'
	`, wallet, epochIndex, signature)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("confirm claim for %s epoch %d: grant not in claiming state", wallet, epochIndex)
	}
	return nil
}

// RollbackClaim reverts claiming -> unclaimed after a payout failure so the
// wallet can retry.
func (db *DB) RollbackClaim(ctx context.Context, wallet string, epochIndex uint64) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE reward_grants SET status = 'unclaimed', updated_at = NOW()
		WHERE wallet = $1 AND epoch_index = $2 AND status = 'claiming'
	`, wallet, epochIndex)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("rollback claim for %s epoch %d: grant not in claiming state", wallet, epochIndex)
	}
	return nil
}

// RewardTotalByEpoch sums the epoch's grant amounts as big integers.
func (db *DB) RewardTotalByEpoch(ctx context.Context, epochIndex uint64) (model.Lamports, error) {
	grants, err := db.GrantsByEpoch(ctx, epochIndex)
	if err != nil {
		return model.Lamports{}, err
	}
	total := model.Lamports{}
	for _, g := range grants {
		total = total.Add(g.AmountLamports)
	}
	return total, nil
}
