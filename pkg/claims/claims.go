package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/auth"
	"github.com/pump-pill/arenax/pkg/ledger"
	"github.com/pump-pill/arenax/pkg/model"
	"github.com/pump-pill/arenax/pkg/retry"
)

// Service errors, layered on top of the grant store's.
var (
	ErrInvalidProof = errors.New("invalid wallet proof")
	ErrPayoutFailed = errors.New("payout failed, claim rolled back")
)

// GrantStore is the strict-consistency side of claiming. Implemented by the
// reward store; faked in tests.
type GrantStore interface {
	GetGrant(ctx context.Context, wallet string, epochIndex uint64) (*model.RewardGrant, error)
	BeginClaim(ctx context.Context, wallet string, epochIndex uint64) error
	ConfirmClaim(ctx context.Context, wallet string, epochIndex uint64, signature string) error
	RollbackClaim(ctx context.Context, wallet string, epochIndex uint64) error
	UnclaimedByWallet(ctx context.Context, wallet string) ([]model.RewardGrant, error)
}

// Notifier publishes claim events. Best effort; nil disables notifications.
type Notifier interface {
	Publish(ctx context.Context, channel string, message interface{})
}

// Service drives the claim state machine: verify the wallet proof, win the
// unclaimed -> claiming transition, submit the payout, then confirm or roll
// back. Exclusivity lives in the store's conditional UPDATE, so concurrent
// claims across many instances still settle each grant at most once.
type Service struct {
	logger       *zap.Logger
	store        GrantStore
	submitter    ledger.Submitter
	notifier     Notifier
	notifyChan   string
	payoutWindow time.Duration
}

// NewService wires a claim service.
func NewService(logger *zap.Logger, store GrantStore, submitter ledger.Submitter, notifier Notifier, notifyChan string) *Service {
	return &Service{
		logger:       logger,
		store:        store,
		submitter:    submitter,
		notifier:     notifier,
		notifyChan:   notifyChan,
		payoutWindow: 30 * time.Second,
	}
}

// Claim settles a grant for its wallet. Returns the ledger's claim signature
// on success. The proof must be a valid signature by the wallet's key over a
// message that references the wallet, so sessions alone cannot move funds.
func (s *Service) Claim(ctx context.Context, epochIndex uint64, proof auth.Proof) (string, error) {
	wallet, err := auth.VerifyProof(proof)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidProof, err)
	}

	if err := s.store.BeginClaim(ctx, wallet, epochIndex); err != nil {
		return "", err
	}

	grant, err := s.store.GetGrant(ctx, wallet, epochIndex)
	if err != nil {
		s.rollback(ctx, wallet, epochIndex)
		return "", err
	}

	var conf ledger.Confirmation
	payoutCtx, cancel := context.WithTimeout(ctx, s.payoutWindow)
	defer cancel()
	err = retry.WithBackoff(payoutCtx, retry.PayoutConfig(), s.logger, "submit payout", func() error {
		var submitErr error
		conf, submitErr = s.submitter.Submit(payoutCtx, ledger.Payout{
			Wallet:         wallet,
			EpochIndex:     epochIndex,
			AmountLamports: grant.AmountLamports,
		})
		return submitErr
	})
	if err != nil {
		s.rollback(ctx, wallet, epochIndex)
		s.logger.Warn("Payout failed, claim rolled back",
			zap.String("wallet", wallet),
			zap.Uint64("epoch", epochIndex),
			zap.Error(err))
		return "", fmt.Errorf("%w: %s", ErrPayoutFailed, err)
	}

	if err := s.store.ConfirmClaim(ctx, wallet, epochIndex, conf.Signature); err != nil {
		// The payout went through but the confirm failed; do not roll back
		// to unclaimed or the wallet could be paid twice.
		s.logger.Error("Failed to confirm settled claim",
			zap.String("wallet", wallet),
			zap.Uint64("epoch", epochIndex),
			zap.String("signature", conf.Signature),
			zap.Error(err))
		return "", err
	}

	if s.notifier != nil {
		s.notifier.Publish(ctx, s.notifyChan, fmt.Sprintf(`{"wallet":%q,"epoch":%d,"amountLamports":%q}`,
			wallet, epochIndex, grant.AmountLamports.String()))
	}

	s.logger.Info("Claim settled",
		zap.String("wallet", wallet),
		zap.Uint64("epoch", epochIndex),
		zap.String("amountLamports", grant.AmountLamports.String()),
		zap.String("signature", conf.Signature))

	return conf.Signature, nil
}

// Pending returns the wallet's unclaimed grants.
func (s *Service) Pending(ctx context.Context, wallet string) ([]model.RewardGrant, error) {
	return s.store.UnclaimedByWallet(ctx, wallet)
}

func (s *Service) rollback(ctx context.Context, wallet string, epochIndex uint64) {
	// Use a fresh deadline: the claim context may already be cancelled, and
	// a stuck 'claiming' grant blocks the wallet until manual repair.
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.RollbackClaim(rbCtx, wallet, epochIndex); err != nil {
		s.logger.Error("Failed to roll back claim",
			zap.String("wallet", wallet),
			zap.Uint64("epoch", epochIndex),
			zap.Error(err))
	}
}
