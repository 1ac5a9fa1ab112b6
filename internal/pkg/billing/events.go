package billing

import (
	"strings"
	"time"
)

const (
	EventOrderCompleted        = "order.completed"
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionRenewed   = "subscription.renewed"
	EventSubscriptionCanceled  = "subscription.canceled"
)

// NormalizeEventType lowercases t and maps '_' and ':' to '.', so
// "ORDER_COMPLETED" and "order:completed" both become "order.completed".
// The British spelling of canceled is folded as well.
func NormalizeEventType(t string) string {
	n := strings.ToLower(strings.TrimSpace(t))
	n = strings.NewReplacer("_", ".", ":", ".", "-", ".").Replace(n)
	if n == "subscription.cancelled" {
		return EventSubscriptionCanceled
	}
	return n
}

func isKnownEvent(t string) bool {
	switch t {
	case EventOrderCompleted, EventSubscriptionActivated, EventSubscriptionRenewed, EventSubscriptionCanceled:
		return true
	default:
		return false
	}
}

func eventType(p Payload) string {
	return NormalizeEventType(p.String("type", "event_type", "event", "meta.event_name", "data.type"))
}

func providerEventID(p Payload) string {
	return p.String("event_id", "id", "meta.event_id")
}

func orderID(p Payload) string {
	return p.String("order_id", "data.order_id", "data.order.id", "data.object.order_id")
}

func providerSubscriptionID(p Payload) string {
	return p.String("subscription_id", "data.subscription_id", "data.subscription.id", "data.object.subscription_id")
}

// eventID is the dedupe key: the provider's event id, else the order id,
// else "{type}:{timestamp}".
func eventID(p Payload, normalizedType, timestamp string) string {
	if id := providerEventID(p); id != "" {
		return id
	}
	if id := orderID(p); id != "" {
		return id
	}
	return normalizedType + ":" + strings.TrimSpace(timestamp)
}

func periodEnd(p Payload) *time.Time {
	return p.Time(
		"current_period_end",
		"data.current_period_end",
		"data.subscription.current_period_end",
		"data.period_end",
		"data.subscription.period_end",
		"data.renews_at",
		"data.ends_at",
	)
}

func periodStart(p Payload) *time.Time {
	return p.Time(
		"current_period_start",
		"data.current_period_start",
		"data.subscription.current_period_start",
		"data.started_at",
	)
}
