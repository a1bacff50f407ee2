package models

import "github.com/dmitrijs2005/skybox/internal/common"

// PlanTier names a fixed storage plan.
type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanPremium  PlanTier = "premium"
	PlanUltimate PlanTier = "ultimate"
)

// Plan is the fixed mapping of a tier to its limit, price and credit grant.
type Plan struct {
	Tier              PlanTier
	StorageLimitBytes int64
	// PriceMinor is the price in the currency's minor unit (paise for INR).
	PriceMinor int64
	// Credits are granted once per verified purchase.
	Credits int64
}

var plans = map[PlanTier]Plan{
	PlanFree:     {Tier: PlanFree, StorageLimitBytes: 1 * common.GiB},
	PlanPremium:  {Tier: PlanPremium, StorageLimitBytes: 10 * common.GiB, PriceMinor: 50000, Credits: 500},
	PlanUltimate: {Tier: PlanUltimate, StorageLimitBytes: 100 * common.GiB, PriceMinor: 250000, Credits: 5000},
}

// LookupPlan returns the plan for tier or common.ErrUnknownPlan.
func LookupPlan(tier PlanTier) (Plan, error) {
	p, ok := plans[tier]
	if !ok {
		return Plan{}, common.ErrUnknownPlan
	}
	return p, nil
}

// Purchasable reports whether tier can be bought.
func (p Plan) Purchasable() bool {
	return p.PriceMinor > 0
}
