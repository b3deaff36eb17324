package sdk

import (
	"encoding/json"
	"strings"
)

// Tier is a subscription tier code, shared by users, models and plans.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// ParseTier normalizes known tier codes while keeping unknown values.
// An empty string parses to TierFree: accounts without a tier are free accounts.
func ParseTier(val string) Tier {
	normalized := strings.TrimSpace(strings.ToLower(val))
	switch normalized {
	case "", "free":
		return TierFree
	case "pro", "pro_monthly", "pro_yearly":
		return TierPro
	default:
		return Tier(normalized)
	}
}

// IsPaid reports whether the tier grants paid capabilities.
func (t Tier) IsPaid() bool {
	return ParseTier(string(t)) != TierFree
}

// IsPremium reports whether a model with this tier requires a paid subscription.
func (t Tier) IsPremium() bool { return t.IsPaid() }

func (t Tier) String() string { return string(t) }

func (t *Tier) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ParseTier(raw)
	return nil
}
