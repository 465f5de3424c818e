package model

import (
	"fmt"
	"time"
)

// EpochStatus is the lifecycle state of an epoch window. Transitions are
// monotonic: pending -> active -> closed, never reversed.
type EpochStatus string

const (
	EpochPending EpochStatus = "pending"
	EpochActive  EpochStatus = "active"
	EpochClosed  EpochStatus = "closed"
)

// EpochWindow is a fixed administrative time window over which trading
// activity is scored and rewarded. At most one window is active at a time.
type EpochWindow struct {
	Index          uint64      `json:"index"`
	StartUtc       time.Time   `json:"startUtc"`
	EndUtc         time.Time   `json:"endUtc"`
	Status         EpochStatus `json:"status"`
	BudgetLamports Lamports    `json:"budgetLamports"`
	GrantsComputed bool        `json:"grantsComputed"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Contains reports whether ts falls inside the window: startUtc <= ts < endUtc.
func (w EpochWindow) Contains(ts time.Time) bool {
	return !ts.Before(w.StartUtc) && ts.Before(w.EndUtc)
}

// Expired reports whether the window's end has passed.
func (w EpochWindow) Expired(now time.Time) bool {
	return !now.Before(w.EndUtc)
}

// Validate checks window invariants at creation time.
func (w EpochWindow) Validate() error {
	if !w.StartUtc.Before(w.EndUtc) {
		return fmt.Errorf("invalid epoch window: start %s is not before end %s", w.StartUtc, w.EndUtc)
	}
	return nil
}
