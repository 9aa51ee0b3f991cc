package domain

import "fmt"

// Tier is the performance bucket assigned to an advertised product.
// A = proven profitable at scale, B = promising but unproven at scale,
// C = untested or failed. The set is closed: code that branches on Tier
// should switch over Tiers() so a new tier is a compile-visible change.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Tiers returns all tiers ordered by priority (A first).
func Tiers() []Tier { return []Tier{TierA, TierB, TierC} }

// ParseTier converts an external classification tag into a Tier.
// Upstream analytics also emits "D", which has no campaign of its own and
// falls into the controlled-test bucket C.
func ParseTier(s string) (Tier, bool) {
	switch s {
	case "A":
		return TierA, true
	case "B":
		return TierB, true
	case "C", "D":
		return TierC, true
	default:
		return "", false
	}
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierA, TierB, TierC:
		return true
	}
	return false
}

func (t Tier) String() string { return string(t) }

// AdAction is the classifier's verdict for a product's remote ad.
type AdAction string

const (
	ActionActivate AdAction = "active"
	ActionPause    AdAction = "paused"
)

// Validate returns an error for tiers outside the closed set. Useful at the
// API boundary where tiers arrive as raw strings.
func (t Tier) Validate() error {
	if !t.Valid() {
		return fmt.Errorf("unknown tier %q", string(t))
	}
	return nil
}
