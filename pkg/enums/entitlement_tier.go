package enums

import "fmt"

// EntitlementTier is the account level a user holds.
type EntitlementTier string

const (
	EntitlementTierFree EntitlementTier = "free"
	EntitlementTierPro  EntitlementTier = "pro"
)

var validEntitlementTiers = []EntitlementTier{
	EntitlementTierFree,
	EntitlementTierPro,
}

// String implements fmt.Stringer.
func (e EntitlementTier) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EntitlementTier.
func (e EntitlementTier) IsValid() bool {
	for _, candidate := range validEntitlementTiers {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEntitlementTier converts raw input into an EntitlementTier.
func ParseEntitlementTier(value string) (EntitlementTier, error) {
	for _, candidate := range validEntitlementTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entitlement tier %q", value)
}
