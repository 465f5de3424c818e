package claims_test

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pump-pill/arenax/pkg/auth"
	"github.com/pump-pill/arenax/pkg/claims"
	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/ledger"
	"github.com/pump-pill/arenax/pkg/model"
)

// memStore mimics the reward store's conditional status transitions in memory,
// including the unclaimed -> claiming compare-and-set that makes claims
// exclusive.
type memStore struct {
	mu     sync.Mutex
	grants map[string]*model.RewardGrant
}

func newMemStore() *memStore {
	return &memStore{grants: map[string]*model.RewardGrant{}}
}

func (s *memStore) key(wallet string, epochIndex uint64) string {
	return fmt.Sprintf("%s:%d", wallet, epochIndex)
}

func (s *memStore) put(g model.RewardGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[s.key(g.Wallet, g.EpochIndex)] = &g
}

func (s *memStore) GetGrant(_ context.Context, wallet string, epochIndex uint64) (*model.RewardGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[s.key(wallet, epochIndex)]
	if !ok {
		return nil, rewardstore.ErrGrantNotFound
	}
	out := *g
	return &out, nil
}

func (s *memStore) BeginClaim(_ context.Context, wallet string, epochIndex uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[s.key(wallet, epochIndex)]
	if !ok {
		return rewardstore.ErrGrantNotFound
	}
	switch g.Status {
	case model.GrantUnclaimed:
		g.Status = model.GrantClaiming
		return nil
	case model.GrantClaiming:
		return rewardstore.ErrClaimInProgress
	default:
		return rewardstore.ErrAlreadyClaimed
	}
}

func (s *memStore) ConfirmClaim(_ context.Context, wallet string, epochIndex uint64, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[s.key(wallet, epochIndex)]
	if !ok || g.Status != model.GrantClaiming {
		return rewardstore.ErrGrantNotFound
	}
	g.Status = model.GrantClaimed
	g.ClaimSignature = signature
	return nil
}

func (s *memStore) RollbackClaim(_ context.Context, wallet string, epochIndex uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[s.key(wallet, epochIndex)]
	if !ok || g.Status != model.GrantClaiming {
		return rewardstore.ErrGrantNotFound
	}
	g.Status = model.GrantUnclaimed
	return nil
}

func (s *memStore) UnclaimedByWallet(_ context.Context, wallet string) ([]model.RewardGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RewardGrant
	for _, g := range s.grants {
		if g.Wallet == wallet && g.Status == model.GrantUnclaimed {
			out = append(out, *g)
		}
	}
	return out, nil
}

type captureNotifier struct {
	mu       sync.Mutex
	messages []interface{}
}

func (n *captureNotifier) Publish(_ context.Context, _ string, message interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func signedProof(t *testing.T) auth.Proof {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	wallet := hex.EncodeToString(pub)
	message := "claim arena rewards for " + wallet
	return auth.Proof{
		Wallet:    wallet,
		Message:   message,
		Signature: hex.EncodeToString(ed25519.Sign(priv, []byte(message))),
	}
}

func TestClaimSettlesGrant(t *testing.T) {
	ctx := context.Background()
	proof := signedProof(t)

	store := newMemStore()
	store.put(model.RewardGrant{
		Wallet:         proof.Wallet,
		EpochIndex:     3,
		AmountLamports: model.LamportsFromUint64(408_000_000),
		Status:         model.GrantUnclaimed,
	})
	fake := ledger.NewFake(0)
	notifier := &captureNotifier{}
	svc := claims.NewService(zaptest.NewLogger(t), store, fake, notifier, "grants")

	sig, err := svc.Claim(ctx, 3, proof)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	grant, err := store.GetGrant(ctx, proof.Wallet, 3)
	require.NoError(t, err)
	assert.Equal(t, model.GrantClaimed, grant.Status)
	assert.Equal(t, sig, grant.ClaimSignature)

	subs := fake.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "408000000", subs[0].AmountLamports.String())
	assert.Len(t, notifier.messages, 1)
}

// A proof carrying the address in a different case must still settle the
// grant stored under the lowercase form.
func TestClaimMixedCaseWallet(t *testing.T) {
	ctx := context.Background()
	proof := signedProof(t)
	lower := proof.Wallet
	proof.Wallet = strings.ToUpper(proof.Wallet)

	store := newMemStore()
	store.put(model.RewardGrant{
		Wallet:         lower,
		EpochIndex:     3,
		AmountLamports: model.LamportsFromUint64(100),
		Status:         model.GrantUnclaimed,
	})
	fake := ledger.NewFake(0)
	svc := claims.NewService(zaptest.NewLogger(t), store, fake, nil, "grants")

	sig, err := svc.Claim(ctx, 3, proof)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	grant, err := store.GetGrant(ctx, lower, 3)
	require.NoError(t, err)
	assert.Equal(t, model.GrantClaimed, grant.Status)

	subs := fake.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, lower, subs[0].Wallet)
}

func TestClaimInvalidProof(t *testing.T) {
	proof := signedProof(t)
	proof.Signature = proof.Signature[:len(proof.Signature)-2] + "00"

	store := newMemStore()
	store.put(model.RewardGrant{
		Wallet:         proof.Wallet,
		EpochIndex:     3,
		AmountLamports: model.LamportsFromUint64(100),
		Status:         model.GrantUnclaimed,
	})
	fake := ledger.NewFake(0)
	svc := claims.NewService(zaptest.NewLogger(t), store, fake, nil, "grants")

	_, err := svc.Claim(context.Background(), 3, proof)
	require.ErrorIs(t, err, claims.ErrInvalidProof)

	// The grant never left unclaimed and no payout was submitted.
	grant, err := store.GetGrant(context.Background(), proof.Wallet, 3)
	require.NoError(t, err)
	assert.Equal(t, model.GrantUnclaimed, grant.Status)
	assert.Empty(t, fake.Submissions())
}

func TestClaimAlreadyClaimed(t *testing.T) {
	ctx := context.Background()
	proof := signedProof(t)

	store := newMemStore()
	store.put(model.RewardGrant{
		Wallet:         proof.Wallet,
		EpochIndex:     3,
		AmountLamports: model.LamportsFromUint64(100),
		Status:         model.GrantUnclaimed,
	})
	fake := ledger.NewFake(0)
	svc := claims.NewService(zaptest.NewLogger(t), store, fake, nil, "grants")

	_, err := svc.Claim(ctx, 3, proof)
	require.NoError(t, err)

	// A second claim reports the terminal state and never resubmits the
	// payout.
	_, err = svc.Claim(ctx, 3, proof)
	require.ErrorIs(t, err, rewardstore.ErrAlreadyClaimed)
	assert.Len(t, fake.Submissions(), 1)
}

func TestClaimGrantNotFound(t *testing.T) {
	proof := signedProof(t)
	svc := claims.NewService(zaptest.NewLogger(t), newMemStore(), ledger.NewFake(0), nil, "grants")

	_, err := svc.Claim(context.Background(), 3, proof)
	require.ErrorIs(t, err, rewardstore.ErrGrantNotFound)
}

// TestClaimPayoutFailureRollsBack exhausts every payout attempt and expects
// the grant back in unclaimed, so the wallet can try again later.
func TestClaimPayoutFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	proof := signedProof(t)

	store := newMemStore()
	store.put(model.RewardGrant{
		Wallet:         proof.Wallet,
		EpochIndex:     3,
		AmountLamports: model.LamportsFromUint64(100),
		Status:         model.GrantUnclaimed,
	})
	fake := ledger.NewFake(3) // fails all payout attempts
	svc := claims.NewService(zaptest.NewLogger(t), store, fake, nil, "grants")

	_, err := svc.Claim(ctx, 3, proof)
	require.ErrorIs(t, err, claims.ErrPayoutFailed)

	grant, err := store.GetGrant(ctx, proof.Wallet, 3)
	require.NoError(t, err)
	assert.Equal(t, model.GrantUnclaimed, grant.Status)
	assert.Empty(t, fake.Submissions())

	// The rolled-back grant is claimable once the ledger recovers.
	sig, err := svc.Claim(ctx, 3, proof)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
}

// TestClaimExclusive races many claims for one grant: exactly one wins and
// exactly one payout reaches the ledger.
func TestClaimExclusive(t *testing.T) {
	ctx := context.Background()
	proof := signedProof(t)

	store := newMemStore()
	store.put(model.RewardGrant{
		Wallet:         proof.Wallet,
		EpochIndex:     3,
		AmountLamports: model.LamportsFromUint64(100),
		Status:         model.GrantUnclaimed,
	})
	fake := ledger.NewFake(0)
	svc := claims.NewService(zaptest.NewLogger(t), store, fake, nil, "grants")

	const racers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		losses    int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Claim(ctx, 3, proof)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			losses++
			assert.True(t,
				errors.Is(err, rewardstore.ErrClaimInProgress) || errors.Is(err, rewardstore.ErrAlreadyClaimed),
				"unexpected claim error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, losses)
	assert.Len(t, fake.Submissions(), 1)
}
