package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID            uuid.UUID
	Owner         string
	Kind          Kind
	SourceToken   string
	TargetToken   string
	Amount        decimal.Decimal
	PriceTarget   decimal.Decimal
	Slippage      decimal.Decimal
	Expiry        *time.Time
	Status        Status
	Version       uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ResolvedAt    *time.Time
	FailureReason string
	SwapReference string
}

// ReferenceToken is the token whose USD price decides the trigger. It is the
// target token for every kind.
func (o Order) ReferenceToken() string {
	return o.TargetToken
}

func (o Order) Expired(now time.Time) bool {
	return o.Expiry != nil && now.After(*o.Expiry)
}

type Kind uint8

const (
	KindUnspecified Kind = iota
	KindBuy
	KindSell
	KindStopLoss
)

func (k Kind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindSell:
		return "sell"
	case KindStopLoss:
		return "stop_loss"
	default:
		return "unspecified"
	}
}

func ParseKind(s string) (Kind, bool) {
	switch s {
	case "buy", "Buy", "BUY":
		return KindBuy, true
	case "sell", "Sell", "SELL":
		return KindSell, true
	case "stop_loss", "StopLoss", "STOP_LOSS":
		return KindStopLoss, true
	default:
		return KindUnspecified, false
	}
}

type Status uint8

const (
	StatusUnspecified Status = iota
	StatusActive
	StatusExecuting
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExecuting:
		return "executing"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unspecified"
	}
}

func ParseStatus(s string) (Status, bool) {
	for _, status := range []Status{StatusActive, StatusExecuting, StatusCompleted, StatusCancelled, StatusFailed} {
		if status.String() == s {
			return status, true
		}
	}
	return StatusUnspecified, false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusActive:    {StatusExecuting, StatusCancelled, StatusFailed},
	StatusExecuting: {StatusCompleted, StatusFailed, StatusActive},
}

// CanTransition reports whether from -> to is an edge of the order state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Filter struct {
	Owner  string
	Status Status
}

func (f Filter) Match(order Order) bool {
	if f.Owner != "" && order.Owner != f.Owner {
		return false
	}
	if f.Status != StatusUnspecified && order.Status != f.Status {
		return false
	}
	return true
}
