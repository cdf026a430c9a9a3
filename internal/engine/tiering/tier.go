package tiering

// Tier is the approval level a purchase order is routed to. Ordering is
// significant: higher values require more senior approval, and TierFour is
// the fail-safe worst outcome the engine falls back to on any failure.
type Tier int

const (
	TierAutoApprove Tier = iota
	TierOne
	TierTwo
	TierThree
	TierFour
)

var tierNames = map[Tier]string{
	TierAutoApprove: "Auto-Approve",
	TierOne:         "Tier 1",
	TierTwo:         "Tier 2",
	TierThree:       "Tier 3",
	TierFour:        "Tier 4",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "Unknown"
}

// AllTiers lists every tier in ascending severity, used when resolving the
// full custom-field flag set.
func AllTiers() []Tier {
	return []Tier{TierAutoApprove, TierOne, TierTwo, TierThree, TierFour}
}
