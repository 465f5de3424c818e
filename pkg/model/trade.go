package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the taker side of a trade.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// ParseTradeSide validates a side string from the wire.
func ParseTradeSide(s string) (TradeSide, error) {
	switch TradeSide(s) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid trade side %q", s)
	}
}

// TradeEvent is a single trade from the source of record. Events are
// append-only: once recorded they are never mutated.
type TradeEvent struct {
	Wallet      string          `json:"wallet"`
	Token       string          `json:"token"`
	Side        TradeSide       `json:"side"`
	AmountToken decimal.Decimal `json:"amountToken"`
	// PriceSol is the trade price expressed in SOL per token unit,
	// already converted from the quote currency by the source.
	PriceSol decimal.Decimal `json:"priceSol"`
	Ts       time.Time       `json:"timestampUtc"`
}

// VolSol is the trade's notional volume in SOL.
func (e TradeEvent) VolSol() decimal.Decimal {
	return e.AmountToken.Mul(e.PriceSol)
}

// Validate rejects events that could corrupt aggregation.
func (e TradeEvent) Validate() error {
	if e.Wallet == "" {
		return fmt.Errorf("trade event missing wallet")
	}
	if e.Token == "" {
		return fmt.Errorf("trade event missing token")
	}
	if _, err := ParseTradeSide(string(e.Side)); err != nil {
		return err
	}
	if e.AmountToken.IsNegative() || e.PriceSol.IsNegative() {
		return fmt.Errorf("trade event has negative amount or price")
	}
	if e.Ts.IsZero() {
		return fmt.Errorf("trade event missing timestamp")
	}
	return nil
}
