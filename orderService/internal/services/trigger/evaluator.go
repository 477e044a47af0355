package trigger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
)

// Evaluate decides what the monitor should do with an Active order given the
// latest price of its reference token. Expiry wins over any price condition.
func Evaluate(order models.Order, price decimal.Decimal, now time.Time) models.Decision {
	if order.Expired(now) {
		return models.DecisionExpired
	}

	if crossed(order.Kind, price, order.PriceTarget) {
		return models.DecisionTriggered
	}

	return models.DecisionNotTriggered
}

// EvaluateSnapshot looks the reference token up in the snapshot. Orders whose
// token has no price this tick are skipped entirely, expiry included.
func EvaluateSnapshot(order models.Order, snapshot models.PriceSnapshot, now time.Time) (models.Decision, bool) {
	price, found := snapshot.Lookup(order.ReferenceToken())
	if !found {
		return models.DecisionNotTriggered, false
	}

	return Evaluate(order, price, now), true
}

func crossed(kind models.Kind, price, target decimal.Decimal) bool {
	switch kind {
	case models.KindBuy, models.KindStopLoss:
		return price.LessThanOrEqual(target)
	case models.KindSell:
		return price.GreaterThanOrEqual(target)
	default:
		return false
	}
}
