package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Submitter for tests. It can be scripted to fail the
// first N submissions, which exercises the claim rollback path.
type Fake struct {
	mu          sync.Mutex
	failRemain  int
	submissions []Payout
}

// NewFake returns a Fake that fails the first failFirst submissions.
func NewFake(failFirst int) *Fake {
	return &Fake{failRemain: failFirst}
}

func (f *Fake) Submit(_ context.Context, payout Payout) (Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRemain > 0 {
		f.failRemain--
		return Confirmation{}, fmt.Errorf("ledger unavailable")
	}

	f.submissions = append(f.submissions, payout)
	return Confirmation{
		Signature: fmt.Sprintf("sig-%s-%d-%d", payout.Wallet, payout.EpochIndex, len(f.submissions)),
	}, nil
}

// Submissions returns the accepted payouts.
func (f *Fake) Submissions() []Payout {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Payout, len(f.submissions))
	copy(out, f.submissions)
	return out
}
