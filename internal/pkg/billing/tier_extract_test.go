package billing

import (
	"testing"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
)

func TestExtractTier(t *testing.T) {
	tests := []struct {
		name string
		body string
		want tiers.Tier
		ok   bool
	}{
		{"product metadata", `{"data":{"product":{"metadata":{"tier":"Gold"}}}}`, tiers.Gold, true},
		{"line item metadata", `{"data":{"order":{"line_items":[{"metadata":{}},{"metadata":{"tier":" silver "}}]}}}`, tiers.Silver, true},
		{"plan metadata", `{"data":{"plan":{"metadata":{"tier":"gold"}}}}`, tiers.Gold, true},
		{"checkout metadata", `{"metadata":{"tier":"silver","reference":"srv=1|uid=a"}}`, tiers.Silver, true},
		{"recursive fallback", `{"data":{"x":{"y":[{"tier":"gold"}]}}}`, tiers.Gold, true},
		{"product wins over checkout", `{"metadata":{"tier":"silver"},"data":{"product":{"metadata":{"tier":"gold"}}}}`, tiers.Gold, true},
		{"unknown tier is skipped", `{"data":{"product":{"metadata":{"tier":"platinum"}}},"metadata":{"tier":"silver"}}`, tiers.Silver, true},
		{"normal is not purchasable", `{"metadata":{"tier":"normal"}}`, "", false},
		{"near miss", `{"metadata":{"tier":"gold-plus"}}`, "", false},
		{"absent", `{"data":{"id":"1"}}`, "", false},
	}
	for _, tt := range tests {
		p, err := ParsePayload([]byte(tt.body))
		if err != nil {
			t.Fatalf("%s: parse: %v", tt.name, err)
		}
		got, ok := ExtractTier(p)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("%s: ExtractTier = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeEventType(t *testing.T) {
	tests := map[string]string{
		"order.completed":        EventOrderCompleted,
		"ORDER_COMPLETED":        EventOrderCompleted,
		"order-completed":        EventOrderCompleted,
		"subscription:renewed":   EventSubscriptionRenewed,
		"subscription_cancelled": EventSubscriptionCanceled,
		"Subscription.Canceled":  EventSubscriptionCanceled,
		"refund.created":         "refund.created",
	}
	for in, want := range tests {
		if got := NormalizeEventType(in); got != want {
			t.Fatalf("NormalizeEventType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEventID(t *testing.T) {
	p, _ := ParsePayload([]byte(`{"id":"evt_1","data":{"order_id":"ord_1"}}`))
	if got := eventID(p, EventOrderCompleted, "100"); got != "evt_1" {
		t.Fatalf("expected provider event id, got %q", got)
	}
	p, _ = ParsePayload([]byte(`{"data":{"order_id":123}}`))
	if got := eventID(p, EventOrderCompleted, "100"); got != "123" {
		t.Fatalf("expected order id, got %q", got)
	}
	p, _ = ParsePayload([]byte(`{"type":"order.completed"}`))
	if got := eventID(p, EventOrderCompleted, "100"); got != "order.completed:100" {
		t.Fatalf("expected type:timestamp, got %q", got)
	}
}

func TestParsePayloadRejectsNonObjects(t *testing.T) {
	for _, body := range []string{``, `not json`, `[1,2]`, `null`, `"str"`} {
		if _, err := ParsePayload([]byte(body)); err == nil {
			t.Fatalf("expected %q to be rejected", body)
		}
	}
}
