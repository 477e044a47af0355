package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceQuote struct {
	PriceUSD   decimal.Decimal
	ObservedAt time.Time
	Source     string
}

// PriceSnapshot is the per-tick price view. It is built for one tick and dropped after it.
type PriceSnapshot map[string]PriceQuote

func (p PriceSnapshot) Lookup(token string) (decimal.Decimal, bool) {
	quote, found := p[token]
	if !found {
		return decimal.Decimal{}, false
	}
	return quote.PriceUSD, true
}

type Decision uint8

const (
	DecisionNotTriggered Decision = iota
	DecisionTriggered
	DecisionExpired
)

func (d Decision) String() string {
	switch d {
	case DecisionTriggered:
		return "triggered"
	case DecisionExpired:
		return "expired"
	default:
		return "not_triggered"
	}
}

type SwapRequest struct {
	OrderID     string
	Owner       string
	SourceToken string
	TargetToken string
	Amount      decimal.Decimal
	Slippage    decimal.Decimal
}

type SwapResult struct {
	Reference string
}
