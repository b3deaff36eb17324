package sdk

// StringPtr is a convenience helper for optional string fields (profile patches).
func StringPtr(s string) *string { return &s }

// TierPtr is a convenience helper for optional tier fields.
func TierPtr(t Tier) *Tier { return &t }
