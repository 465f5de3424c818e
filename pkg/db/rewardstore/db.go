package rewardstore

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/db/postgres"
)

// Store errors. Controllers map these to API codes; the claim service relies
// on them to distinguish the loser of a claim race from a double claim.
var (
	ErrEpochNotFound     = errors.New("epoch not found")
	ErrEpochExists       = errors.New("epoch already exists")
	ErrEpochNotPending   = errors.New("epoch is not pending")
	ErrEpochNotActive    = errors.New("epoch is not active")
	ErrEpochNotClosed    = errors.New("epoch is not closed")
	ErrActiveEpochExists = errors.New("another epoch is already active")
	ErrNoActiveEpoch     = errors.New("no active epoch")
	ErrGrantNotFound     = errors.New("grant not found")
	ErrAlreadyClaimed    = errors.New("grant already claimed")
	ErrClaimInProgress   = errors.New("claim already in progress")
)

// DB owns all strict-consistency state: epoch windows and reward grants.
// Claim transitions are conditional UPDATEs, so exclusivity holds across
// multiple server instances without any in-process lock.
type DB struct {
	postgres.Client
}

// New connects to PostgreSQL and ensures the reward tables exist.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(zap.String("component", "reward_store")))
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client}
	if err := db.InitializeDB(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return db, nil
}

// InitializeDB creates the epochs and reward_grants tables.
func (db *DB) InitializeDB(ctx context.Context) error {
	if err := db.initEpochs(ctx); err != nil {
		return err
	}
	return db.initGrants(ctx)
}
