package rewardstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pump-pill/arenax/pkg/model"
)

func (db *DB) initEpochs(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS epochs (
			epoch_index BIGINT PRIMARY KEY,
			start_utc TIMESTAMPTZ NOT NULL,
			end_utc TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			budget_lamports TEXT NOT NULL DEFAULT '0',
			grants_computed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := db.Pool.Exec(ctx, query)
	return err
}

const epochColumns = `epoch_index, start_utc, end_utc, status, budget_lamports, grants_computed, created_at, updated_at`

func scanEpoch(row pgx.Row) (*model.EpochWindow, error) {
	var w model.EpochWindow
	var status string
	err := row.Scan(&w.Index, &w.StartUtc, &w.EndUtc, &status, &w.BudgetLamports, &w.GrantsComputed, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEpochNotFound
		}
		return nil, err
	}
	w.Status = model.EpochStatus(status)
	return &w, nil
}

// CreateEpoch records a new pending window.
func (db *DB) CreateEpoch(ctx context.Context, w model.EpochWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO epochs (epoch_index, start_utc, end_utc, status, budget_lamports)
		VALUES ($1, $2, $3, 'pending', $4)
		ON CONFLICT (epoch_index) DO NOTHING
	`, w.Index, w.StartUtc.UTC(), w.EndUtc.UTC(), w.BudgetLamports)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEpochExists
	}
	return nil
}

// ActivateEpoch transitions pending -> active, enforcing the single-active
// invariant in the same statement so two admins cannot race each other.
func (db *DB) ActivateEpoch(ctx context.Context, index uint64) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE epochs SET status = 'active', updated_at = NOW()
		WHERE epoch_index = $1 AND status = 'pending'
		  AND NOT EXISTS (SELECT 1 FROM epochs WHERE status = 'active')
	`, index)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	w, err := db.GetEpoch(ctx, index)
	if err != nil {
		return err
	}
	if w.Status != model.EpochPending {
		return ErrEpochNotPending
	}
	return ErrActiveEpochExists
}

// CloseEpoch transitions active -> closed. Returns false without error when
// the epoch is already closed, so the close workflow stays idempotent.
func (db *DB) CloseEpoch(ctx context.Context, index uint64) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE epochs SET status = 'closed', updated_at = NOW()
		WHERE epoch_index = $1 AND status = 'active'
	`, index)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	w, err := db.GetEpoch(ctx, index)
	if err != nil {
		return false, err
	}
	if w.Status == model.EpochClosed {
		return false, nil
	}
	return false, ErrEpochNotActive
}

// GetEpoch returns one window by index.
func (db *DB) GetEpoch(ctx context.Context, index uint64) (*model.EpochWindow, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+epochColumns+` FROM epochs WHERE epoch_index = $1`, index)
	return scanEpoch(row)
}

// ActiveEpoch returns the single active window, or ErrNoActiveEpoch.
func (db *DB) ActiveEpoch(ctx context.Context) (*model.EpochWindow, error) {
	row := db.Pool.QueryRow(ctx, `SELECT ` + epochColumns + ` FROM epochs WHERE status = 'active' LIMIT 1`)
	w, err := scanEpoch(row)
	if errors.Is(err, ErrEpochNotFound) {
		return nil, ErrNoActiveEpoch
	}
	return w, err
}

// LatestClosedEpoch returns the most recent closed window, or ErrEpochNotFound.
func (db *DB) LatestClosedEpoch(ctx context.Context) (*model.EpochWindow, error) {
	row := db.Pool.QueryRow(ctx, `SELECT ` + epochColumns + ` FROM epochs WHERE status = 'closed' ORDER BY epoch_index DESC LIMIT 1`)
	return scanEpoch(row)
}

// ListEpochs returns all windows, newest first.
func (db *DB) ListEpochs(ctx context.Context) ([]model.EpochWindow, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+epochColumns+` FROM epochs ORDER BY epoch_index DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EpochWindow
	for rows.Next() {
		w, err := scanEpoch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// ExpiredActiveEpochs returns active windows whose end has passed. The cron
// scheduler uses this to launch close workflows.
func (db *DB) ExpiredActiveEpochs(ctx context.Context, now time.Time) ([]model.EpochWindow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+epochColumns+` FROM epochs
		WHERE status = 'active' AND end_utc <= $1
	`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EpochWindow
	for rows.Next() {
		w, err := scanEpoch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// WindowForTime returns the window containing ts, preferring the active one.
// Used by the ingest path to tag incoming trades with their epoch.
func (db *DB) WindowForTime(ctx context.Context, ts time.Time) (*model.EpochWindow, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+epochColumns+` FROM epochs
		WHERE start_utc <= $1 AND end_utc > $1
		ORDER BY CASE status WHEN 'active' THEN 0 WHEN 'pending' THEN 1 ELSE 2 END
		LIMIT 1
	`, ts.UTC())
	return scanEpoch(row)
}
