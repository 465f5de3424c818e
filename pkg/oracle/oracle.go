package oracle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pump-pill/arenax/pkg/utils"
)

// PriceSource supplies the SOL/USD conversion rate used for the optional USD
// volume column. The production implementation would sit in front of an
// external price feed; the service only depends on this boundary.
type PriceSource interface {
	SolUsd(ctx context.Context) (decimal.Decimal, bool)
}

// Fixed returns a constant rate read from SOL_USD_RATE. A zero or unset rate
// disables USD volumes entirely.
type Fixed struct {
	rate decimal.Decimal
	ok   bool
}

// NewFixedFromEnv builds a Fixed source from the environment.
func NewFixedFromEnv() *Fixed {
	raw := utils.Env("SOL_USD_RATE", "")
	if raw == "" {
		return &Fixed{}
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || !rate.IsPositive() {
		return &Fixed{}
	}
	return &Fixed{rate: rate, ok: true}
}

// NewFixed builds a Fixed source with an explicit rate, mainly for tests.
func NewFixed(rate decimal.Decimal) *Fixed {
	return &Fixed{rate: rate, ok: rate.IsPositive()}
}

func (f *Fixed) SolUsd(context.Context) (decimal.Decimal, bool) {
	return f.rate, f.ok
}
