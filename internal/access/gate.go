// Package access decides whether a tour edit fits the current plan.
package access

import "fmt"

// DefaultFreeSceneLimit is the scene cap for tours without a pro license.
const DefaultFreeSceneLimit = 3

// ReasonPlanUpgradeRequired is the denial reason (and API error code) for
// edits that exceed the free plan.
const ReasonPlanUpgradeRequired = "plan-upgrade-required"

// UpgradeMessage is shown to the editor when a write is denied.
const UpgradeMessage = "The selected plan allows fewer scenes. Please upgrade to add more."

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed bool
	Reason  string
	Message string
}

// Gate enforces the free-plan scene limit.
type Gate struct {
	limit int
}

// NewGate creates a gate with the given free scene limit. A limit of zero or
// less disables the cap.
func NewGate(limit int) *Gate {
	return &Gate{limit: limit}
}

// Limit returns the configured free scene limit.
func (g *Gate) Limit() int {
	return g.limit
}

// AuthorizeSceneWrite allows pro licenses unconditionally and otherwise
// denies when sceneCount exceeds the limit.
func (g *Gate) AuthorizeSceneWrite(sceneCount int, hasPro bool) Decision {
	if hasPro || g.limit <= 0 || sceneCount <= g.limit {
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed: false,
		Reason:  ReasonPlanUpgradeRequired,
		Message: UpgradeMessage,
	}
}

// String is used in logs.
func (d Decision) String() string {
	if d.Allowed {
		return "allowed"
	}
	return fmt.Sprintf("denied (%s)", d.Reason)
}
