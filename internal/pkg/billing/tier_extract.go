package billing

import (
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
)

// tierExtractor looks for the purchased tier in one place of a payload.
type tierExtractor func(Payload) (tiers.Tier, bool)

// tierExtractors are tried in order; the first hit wins. The order matters:
// the provider repeats the tier at several levels and the product is the
// most authoritative.
var tierExtractors = []tierExtractor{
	productMetadataTier,
	lineItemMetadataTier,
	planMetadataTier,
	checkoutMetadataTier,
	anyTier,
}

// ExtractTier returns the paid tier carried by the payload, if any.
func ExtractTier(p Payload) (tiers.Tier, bool) {
	for _, extract := range tierExtractors {
		if t, ok := extract(p); ok {
			return t, true
		}
	}
	return "", false
}

func tierAt(p Payload, paths ...string) (tiers.Tier, bool) {
	for _, path := range paths {
		v, ok := p.Lookup(path)
		if !ok {
			continue
		}
		if t, ok := tiers.ParsePaid(scalarString(v)); ok {
			return t, true
		}
	}
	return "", false
}

func productMetadataTier(p Payload) (tiers.Tier, bool) {
	return tierAt(p,
		"data.product.metadata.tier",
		"data.order.product.metadata.tier",
		"product.metadata.tier",
	)
}

func lineItemMetadataTier(p Payload) (tiers.Tier, bool) {
	for _, path := range []string{"data.order.line_items", "data.line_items", "line_items", "data.order.items", "data.items"} {
		v, ok := p.Lookup(path)
		if !ok {
			continue
		}
		items, ok := v.([]interface{})
		if !ok {
			continue
		}
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if t, ok := tierAt(Payload(m), "metadata.tier", "product.metadata.tier"); ok {
				return t, true
			}
		}
	}
	return "", false
}

func planMetadataTier(p Payload) (tiers.Tier, bool) {
	return tierAt(p,
		"data.plan.metadata.tier",
		"data.subscription.plan.metadata.tier",
		"plan.metadata.tier",
	)
}

func checkoutMetadataTier(p Payload) (tiers.Tier, bool) {
	return tierAt(p,
		"data.checkout.metadata.tier",
		"data.metadata.tier",
		"metadata.tier",
		"data.custom_data.tier",
		"custom_data.tier",
	)
}

// anyTier is the fallback: the first "tier" key anywhere in the payload
// holding a paid tier.
func anyTier(p Payload) (tiers.Tier, bool) {
	var found tiers.Tier
	ok := walk(map[string]interface{}(p), func(key string, value interface{}) bool {
		if key != "tier" {
			return false
		}
		t, ok := tiers.ParsePaid(scalarString(value))
		if ok {
			found = t
		}
		return ok
	})
	return found, ok
}
