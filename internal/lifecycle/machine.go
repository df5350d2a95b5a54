package lifecycle

import (
	"time"

	"github.com/tribeapp/tribe-server/internal/model"
)

const day = 24 * time.Hour

// Inactivity windows driving status transitions.
const (
	formingDissolveAfter  = 14 * day
	activeAtRiskAfter     = 14 * day
	atRiskRecoverWithin   = 7 * day
	atRiskInactiveAfter   = 30 * day
	inactiveRecoverWithin = 3 * day
	inactiveDissolveAfter = 90 * day
)

// Evaluate derives the next tribe status from the current status, the
// active member count, and the time since the tribe's last activity. It is
// deterministic and side-effect-free; the second return is false when no
// rule matches and the tribe stays where it is. DISSOLVED is absorbing.
func Evaluate(status model.TribeStatus, activeMembers, minMembers int, sinceActivity time.Duration) (model.TribeStatus, bool) {
	switch status {
	case model.TribeForming:
		if activeMembers >= minMembers {
			return model.TribeActive, true
		}
		if sinceActivity > formingDissolveAfter {
			return model.TribeDissolved, true
		}
	case model.TribeActive:
		if sinceActivity > activeAtRiskAfter {
			return model.TribeAtRisk, true
		}
		if activeMembers < minMembers {
			return model.TribeAtRisk, true
		}
	case model.TribeAtRisk:
		if sinceActivity <= atRiskRecoverWithin && activeMembers >= minMembers {
			return model.TribeActive, true
		}
		if sinceActivity > atRiskInactiveAfter {
			return model.TribeInactive, true
		}
	case model.TribeInactive:
		if sinceActivity <= inactiveRecoverWithin && activeMembers >= minMembers {
			return model.TribeActive, true
		}
		if sinceActivity > inactiveDissolveAfter {
			return model.TribeDissolved, true
		}
	case model.TribeDissolved:
		// absorbing
	}
	return status, false
}
