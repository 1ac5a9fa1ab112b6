package tiers

import (
	"strings"
	"time"
)

type Tier string

const (
	Normal Tier = "normal"
	Silver Tier = "silver"
	Gold   Tier = "gold"
)

// GrantDuration is how long a single paid period keeps a community upgraded.
const GrantDuration = 30 * 24 * time.Hour

// PersonalCooldown is the minimum spacing between two promotions by the same user,
// regardless of which communities were promoted.
const PersonalCooldown = time.Hour

// Normalize maps arbitrary input to a known tier. Unknown values fall back to Normal.
func Normalize(tier string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(tier))) {
	case Gold:
		return Gold
	case Silver:
		return Silver
	default:
		return Normal
	}
}

// ParsePaid accepts only the purchasable tiers. Anything other than exactly
// "silver" or "gold" (case and surrounding space aside) is reported as absent.
func ParsePaid(tier string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(tier))) {
	case Gold:
		return Gold, true
	case Silver:
		return Silver, true
	default:
		return "", false
	}
}

func Rank(tier Tier) int {
	switch Normalize(string(tier)) {
	case Gold:
		return 2
	case Silver:
		return 1
	default:
		return 0
	}
}

// IsUpgrade reports whether moving from current to next is a strict upgrade.
func IsUpgrade(current, next Tier) bool {
	return Rank(next) > Rank(current)
}

// EnforcedCooldown is the server-side minimum spacing between two promotions
// of the same community.
func EnforcedCooldown(tier Tier) time.Duration {
	switch Normalize(string(tier)) {
	case Gold:
		return 6 * time.Hour
	case Silver:
		return 12 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// DisplayCooldown is the countdown the promote button shows per community tier.
// It intentionally differs from EnforcedCooldown; see DESIGN.md.
func DisplayCooldown(tier Tier) time.Duration {
	switch Normalize(string(tier)) {
	case Gold:
		return time.Hour
	case Silver:
		return 2 * time.Hour
	default:
		return 4 * time.Hour
	}
}
